// Package journal keeps one file per pipeline run for audit and replay.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"dailysignal/internal/model"
)

// Format selects the on-disk codec.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "json" (the default when empty) or "msgpack".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("journal: unknown format %q", s)
	}
}

const maxCollisions = 1000

// Writer persists run records to a directory, one file each.
type Writer struct {
	dir    string
	format Format

	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer, creating dir if needed.
func NewWriter(dir string, format Format) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if format == "" {
		format = FormatJSON
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, format: format, nowFn: time.Now}, nil
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// Write encodes rec into run_<date>_<timestamp>_<seq>.<format> and returns the
// path. Existing files are never overwritten.
func (w *Writer) Write(date model.Date, rec any) (string, error) {
	if rec == nil {
		return "", errors.New("journal: nil record")
	}
	data, err := encode(w.format, rec)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	stamp := w.nowFn().UTC().Format("20060102T150405Z")
	for i := 0; i < maxCollisions; i++ {
		w.seq++
		name := fmt.Sprintf("run_%s_%s_%03d.%s", date, stamp, w.seq, w.format)
		path := filepath.Join(w.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("journal: create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("journal: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("journal: close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("journal: no free file name for %s", date)
}

// Read decodes the file at path into out, picking the codec from the extension.
func Read(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("journal: read %s: %w", path, err)
	}
	format, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	return decode(format, data, out)
}

func encode(format Format, rec any) ([]byte, error) {
	switch format {
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("journal: msgpack encode: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("journal: json encode: %w", err)
		}
		return data, nil
	}
}

func decode(format Format, data []byte, out any) error {
	switch format {
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("journal: msgpack decode: %w", err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("journal: json decode: %w", err)
		}
	}
	return nil
}
