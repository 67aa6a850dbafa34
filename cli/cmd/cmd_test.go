package cmd

import (
	"flag"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ocean/adapter/redis"
	"github.com/pithecene-io/ocean/adapter/webhook"
	"github.com/pithecene-io/ocean/cli/config"
)

func TestCommandWiring(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *cli.Command
		subs    []string
		hasSubs bool
	}{
		{"migrate", MigrateCommand(), nil, false},
		{"run", RunCommand(), []string{"create", "get", "signal", "delete"}, true},
		{"events", EventsCommand(), []string{"read", "gc"}, true},
		{"version", VersionCommand("abc123"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Name != tt.name {
				t.Errorf("command name = %q, want %q", tt.cmd.Name, tt.name)
			}
			if tt.hasSubs != (len(tt.cmd.Subcommands) > 0) {
				t.Fatalf("subcommand presence mismatch for %s", tt.name)
			}
			for _, want := range tt.subs {
				found := false
				for _, sub := range tt.cmd.Subcommands {
					if sub.Name == want {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("%s is missing subcommand %q", tt.name, want)
				}
			}
		})
	}
}

func TestJSONFlag(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"object", `{"text":"hi"}`, `{"text":"hi"}`, false},
		{"json null is real input", "null", "null", false},
		{"unset is nil", "", "", false},
		{"invalid", "{not json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := flag.NewFlagSet("test", flag.ContinueOnError)
			set.String("input", "", "")
			if tt.value != "" {
				if err := set.Set("input", tt.value); err != nil {
					t.Fatalf("set flag: %v", err)
				}
			}
			c := cli.NewContext(cli.NewApp(), set, nil)

			got, err := jsonFlag(c, "input")
			if (err != nil) != tt.wantErr {
				t.Fatalf("jsonFlag error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("jsonFlag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNotifier_None(t *testing.T) {
	notifier, err := buildNotifier(config.AdapterConfig{})
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if notifier != nil {
		t.Error("empty adapter config should yield nil notifier")
	}
}

func TestBuildNotifier_Redis(t *testing.T) {
	notifier, err := buildNotifier(config.AdapterConfig{
		Type: "redis",
		URL:  "redis://localhost:6379/0",
	})
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if _, ok := notifier.(*redis.Adapter); !ok {
		t.Errorf("expected *redis.Adapter, got %T", notifier)
	}
	notifier.Close()
}

func TestBuildNotifier_Webhook(t *testing.T) {
	notifier, err := buildNotifier(config.AdapterConfig{
		Type: "webhook",
		URL:  "https://hooks.example.com/ocean",
	})
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if _, ok := notifier.(*webhook.Adapter); !ok {
		t.Errorf("expected *webhook.Adapter, got %T", notifier)
	}
	notifier.Close()
}

func TestBuildNotifier_UnsupportedType(t *testing.T) {
	_, err := buildNotifier(config.AdapterConfig{Type: "kafka", URL: "x"})
	if err == nil {
		t.Fatal("expected error for unsupported adapter type")
	}
	if !strings.Contains(err.Error(), "kafka") {
		t.Errorf("error should name the bad type, got: %v", err)
	}
}

func TestRetriesOrDefault(t *testing.T) {
	if got := retriesOrDefault(nil, 3); got != 3 {
		t.Errorf("nil retries = %d, want default 3", got)
	}
	zero := 0
	if got := retriesOrDefault(&zero, 3); got != 0 {
		t.Errorf("explicit zero retries = %d, want 0", got)
	}
}

func TestCoreFlagsIncludeConfigAndDB(t *testing.T) {
	names := map[string]bool{}
	for _, f := range CoreFlags() {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, want := range []string{"config", "db", "instance-id", "format"} {
		if !names[want] {
			t.Errorf("CoreFlags missing --%s", want)
		}
	}
}
