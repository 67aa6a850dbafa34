// Package render formats ocean CLI command output.
//
// Commands hand their result values (run views, event rows, snapshots) to a
// Renderer instead of printing directly. An interactive terminal defaults to
// the table form; piped output defaults to json so scripts get stable,
// parseable lines. --format overrides either default.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. Empty input returns the empty Format
// so the caller can apply its own default.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes command results in one fixed format.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer builds a stdout renderer from the command's --format flag,
// falling back to table on a terminal and json elsewhere.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if isTerminal(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{format: format, out: os.Stdout}, nil
}

// NewRendererWithWriter builds a renderer over an explicit writer. Tests use
// this to capture output.
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Render writes data in the renderer's format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// renderTable writes a slice as a header row plus one line per element, and
// anything else as a field-per-line listing.
func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.listTable(v)
	}
	return r.fieldTable(data)
}

func (r *Renderer) listTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	cols := columns(v.Index(0))
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintln(w, strings.Join(row(v.Index(i), cols), "\t"))
	}
	return nil
}

func (r *Renderer) fieldTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%s\n", columnName(t.Field(i)), cell(v.Field(i)))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), cell(iter.Value()))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return nil
}

// columns derives header names from the first element: struct field tags, or
// map keys.
func columns(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	var cols []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			cols = append(cols, columnName(t.Field(i)))
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			cols = append(cols, fmt.Sprintf("%v", key.Interface()))
		}
	}
	return cols
}

func row(v reflect.Value, cols []string) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	var cells []string
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			cells = append(cells, cell(v.Field(i)))
		}
	case reflect.Map:
		for _, col := range cols {
			val := v.MapIndex(reflect.ValueOf(col))
			if val.IsValid() {
				cells = append(cells, cell(val))
			} else {
				cells = append(cells, "")
			}
		}
	}
	return cells
}

// columnName is the field's json tag name, or the lowercased Go name when the
// tag is absent.
func columnName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

// cell flattens one value to a single table cell. Nil pointers render empty;
// raw JSON payloads print verbatim; other composites collapse to a size hint.
func cell(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type() == reflect.TypeOf(json.RawMessage(nil)) {
			return string(v.Interface().(json.RawMessage))
		}
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
