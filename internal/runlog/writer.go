// Package runlog writes the per-tick transcript of a run as zstd-compressed
// JSON lines, one directory per strategy and run.
package runlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/llm"
)

// FileName is the transcript file inside a run directory.
const FileName = "ticks.jsonl.zst"

// Record is one line of the transcript.
type Record struct {
	RunID        string            `json:"run_id"`
	Strategy     string            `json:"strategy"`
	Tick         uint64            `json:"tick"`
	Result       engine.TickResult `json:"result"`
	Conversation []llm.Message     `json:"conversation,omitempty"`
}

// Writer appends records to <baseDir>/strategy=<s>/run=<id>/ticks.jsonl.zst.
// The file is opened on the first write.
type Writer struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter creates a writer for one run.
func NewWriter(baseDir, strategy, runID string) *Writer {
	return &Writer{path: Path(baseDir, strategy, runID)}
}

// Path returns where the transcript of a run lives.
func Path(baseDir, strategy, runID string) string {
	return filepath.Join(baseDir, "strategy="+strategy, "run="+runID, FileName)
}

// Path returns the transcript file path.
func (w *Writer) Path() string {
	return w.path
}

// Write appends one record.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode tick %d: %w", r.Tick, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes the transcript. The zstd frame is only complete
// after Close.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if w.w != nil {
		errs = append(errs, w.w.Flush())
		w.w = nil
	}
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		errs = append(errs, w.f.Close())
		w.f = nil
	}
	return errors.Join(errs...)
}

func (w *Writer) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

// ReadRecords decodes a closed transcript.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	jd := json.NewDecoder(dec)
	for {
		var r Record
		if err := jd.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode record %d: %w", len(out)+1, err)
		}
		out = append(out, r)
	}
}
