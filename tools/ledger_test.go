package tools

import "testing"

func TestLedgerStartsEmpty(t *testing.T) {
	l := NewLedger()

	if l.HasGlobal() {
		t.Error("global should start unread")
	}
	if l.HasSession("s1") || l.HasRun("r1") {
		t.Error("sessions and runs should start unread")
	}
	if l.HasTickRow("r1", "t1", "a") || l.HasTickRead("r1", "t1") {
		t.Error("tick rows should start unread")
	}
}

func TestLedgerRecordsMintCapabilities(t *testing.T) {
	l := NewLedger()

	l.RecordGlobal()
	l.RecordSession("s1")
	l.RecordRun("r1")
	l.RecordTickRow("r1", "t1", "a")

	if !l.HasGlobal() || !l.HasSession("s1") || !l.HasRun("r1") {
		t.Error("recorded identities should be present")
	}
	if !l.HasTickRow("r1", "t1", "a") {
		t.Error("recorded tick row should be present")
	}
	if !l.HasTickRead("r1", "t1") {
		t.Error("a row read should also mark the tick as read")
	}

	// Identity is exact, not prefix-based.
	if l.HasSession("s2") || l.HasRun("r2") || l.HasTickRow("r1", "t1", "b") {
		t.Error("unrecorded identities must stay absent")
	}
	if l.HasTickRow("r1", "t2", "a") {
		t.Error("tick row identity includes the tick id")
	}
}

func TestLedgerTickReadWithoutRows(t *testing.T) {
	l := NewLedger()

	l.RecordTickRead("r1", "t1")

	if !l.HasTickRead("r1", "t1") {
		t.Error("tick read should be recorded")
	}
	if l.HasTickRow("r1", "t1", "a") {
		t.Error("tick read alone unlocks no specific row")
	}
}
