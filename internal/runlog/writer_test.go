package runlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/llm"
	"github.com/talgya/crisis-grid/internal/metrics"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "react", "abc")

	want := filepath.Join(dir, "strategy=react", "run=abc", FileName)
	if w.Path() != want {
		t.Fatalf("path = %s, want %s", w.Path(), want)
	}

	for tick := uint64(1); tick <= 3; tick++ {
		r := Record{
			RunID:    "abc",
			Strategy: "react",
			Tick:     tick,
			Result: engine.TickResult{
				Tick:    tick,
				Metrics: metrics.Snapshot{Tick: tick, Counters: metrics.Counters{ToolCalls: int(tick)}},
			},
			Conversation: []llm.Message{{Role: "user", Content: "state"}, {Role: "assistant", Content: `{"commands":[]}`}},
		}
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadRecords(w.Path())
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("records = %d", len(got))
	}
	if got[2].Tick != 3 || got[2].Result.Metrics.ToolCalls != 3 || len(got[2].Conversation) != 2 {
		t.Fatalf("last record = %+v", got[2])
	}
}

func TestCloseWithoutWrites(t *testing.T) {
	w := NewWriter(t.TempDir(), "greedy", "x")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Fatalf("file created without writes: %v", err)
	}
}
