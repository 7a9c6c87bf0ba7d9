package audit

import (
	"strings"
	"testing"
)

func TestOpenLogReadRecent(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sink.Log("create_client", "client_id=1, nif=11111111A")
	sink.Log("delete_client", "client_id=1")
	sink.Sync()

	lines, err := sink.ReadRecent(10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "create_client") || !strings.Contains(lines[1], "delete_client") {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestReadRecentLimit(t *testing.T) {
	sink, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 5; i++ {
		sink.Log("event", "n")
	}
	sink.Sync()

	lines, err := sink.ReadRecent(2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want newest 2", len(lines))
	}
}

func TestDiscardIsSilent(t *testing.T) {
	sink := Discard()
	sink.Log("anything", "goes")
	lines, err := sink.ReadRecent(10)
	if err != nil || lines != nil {
		t.Fatalf("discard sink should hold nothing: %v %v", lines, err)
	}
}
