package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileBus is a local/dev Adapter backed by plain newline-delimited JSON
// files under a watch directory — one file per notefile, sanitizing the
// "device:<uid>:<suffix>" addressing form into a flat filename. It exists
// for running the server against a directory of notes dropped by a test
// harness or a real modem sidecar configured to write straight to disk,
// with no broker in the loop at all.
type FileBus struct {
	dir     string
	log     zerolog.Logger
	watcher *fsnotify.Watcher

	mu sync.Mutex

	clockPath string
}

// NewFileBus opens (creating if needed) dir as the notefile root and starts
// an fsnotify watch so Changed can wake a poll loop early instead of
// sleeping the full cadence.
func NewFileBus(dir string, log zerolog.Logger) (*FileBus, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &FileBus{
		dir:       dir,
		log:       log,
		watcher:   w,
		clockPath: filepath.Join(dir, "_clock"),
	}, nil
}

// Changed returns the fsnotify event channel; the ingest pipeline may
// select on it to drain sooner than the default cadence when a new note
// lands on disk.
func (f *FileBus) Changed() <-chan fsnotify.Event {
	return f.watcher.Events
}

// Close stops the directory watch.
func (f *FileBus) Close() error {
	return f.watcher.Close()
}

func sanitize(fileName string) string {
	return strings.ReplaceAll(fileName, ":", "__")
}

func (f *FileBus) pathFor(fileName string) string {
	return filepath.Join(f.dir, sanitize(fileName)+".ndjson")
}

// Drain reads up to maxPerCall lines from the head of fileName's backing
// file and rewrites the remainder, simulating the bus's ack-on-delete
// semantics: a line removed here will not be returned again.
func (f *FileBus) Drain(ctx context.Context, fileName string, maxPerCall int) ([]Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.pathFor(fileName)
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	file.Close()
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, nil
	}

	n := maxPerCall
	if n > len(lines) {
		n = len(lines)
	}
	taken, remaining := lines[:n], lines[n:]

	if err := f.rewrite(path, remaining); err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(taken))
	for _, line := range taken {
		var env struct {
			Epoch float64         `json:"_epoch"`
			Body  json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			f.log.Warn().Err(err).Str("file", fileName).Msg("bus: dropping malformed note line")
			continue
		}
		var body map[string]any
		if err := json.Unmarshal(env.Body, &body); err != nil {
			f.log.Warn().Err(err).Str("file", fileName).Msg("bus: dropping malformed note body")
			continue
		}
		notes = append(notes, Note{Body: body, Epoch: env.Epoch})
	}
	return notes, nil
}

func (f *FileBus) rewrite(path string, lines []string) error {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			out.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Enqueue appends one line to fileName's backing file. sync is a no-op
// here: the line is written to the file before Enqueue returns, without
// an fsync.
func (f *FileBus) Enqueue(ctx context.Context, fileName string, body map[string]any, sync bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	env := struct {
		Epoch float64         `json:"_epoch"`
		Body  json.RawMessage `json:"body"`
	}{Epoch: float64(time.Now().Unix()), Body: payload}
	line, err := json.Marshal(env)
	if err != nil {
		return err
	}

	path := f.pathFor(fileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// CurrentTime reads a single-line JSON clock beacon file if present
// (written externally by a modem sidecar shim); it is the exception to
// FileBus's otherwise append-only model.
func (f *FileBus) CurrentTime() (float64, bool) {
	data, err := os.ReadFile(f.clockPath)
	if err != nil {
		return 0, false
	}
	var msg struct {
		Epoch float64 `json:"epoch"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, false
	}
	return msg.Epoch, true
}
