// Package jsonl appends newline-delimited JSON records to a file, one object
// per line, so event logs can be tailed and replayed with standard tooling.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const bufferSize = 256 * 1024

// Writer is an append-only JSONL file. A nil *Writer is a valid no-op sink,
// so callers can log unconditionally whether or not an output path was
// configured. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
}

// New returns a writer appending to path, or nil when path is blank.
func New(path string) *Writer {
	if path = strings.TrimSpace(path); path == "" {
		return nil
	}
	return &Writer{path: path}
}

// Write appends v as one JSON line and flushes, so tailing processes see the
// record immediately.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("jsonl: nil record")
	}

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w.file = f
		w.buf = bufio.NewWriterSize(f, bufferSize)
	}

	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes buffered data and closes the file. Further writes reopen it.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.buf != nil {
		firstErr = w.buf.Flush()
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.buf = nil
	w.file = nil

	if errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
