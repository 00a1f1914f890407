// Package replay persists race sessions to disk so they can be replayed or
// analyzed offline. A bundle is one directory per race holding a manifest,
// a snappy-compressed JSONL event log, and a zstd-compressed frame stream.
package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var bundleNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manifest describes the bundle layout and the inputs needed to reproduce
// the session.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	TrackName  string `json:"track_name"`
	RaceLaps   int    `json:"race_laps"`
	Seed       int64  `json:"seed"`
	TickRate   int    `json:"tick_rate"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// Writer owns the compressed sinks of one replay bundle. Safe for use from a
// single goroutine plus a concurrent Close.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	closed      bool
}

// NewWriter creates the bundle directory under root and opens the sinks.
func NewWriter(root string, manifest Manifest, clock func() time.Time) (*Writer, error) {
	if root == "" {
		return nil, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	name := bundleNameCleaner.ReplaceAllString(manifest.TrackName, "")
	if name == "" {
		name = "race"
	}
	created := clock().UTC()
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", name, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	manifest.Version = 1
	manifest.CreatedAt = created.Format(time.RFC3339Nano)
	manifest.EventsPath = "events.jsonl.sz"
	manifest.FramesPath = "frames.bin.zst"

	eventFile, err := os.Create(filepath.Join(dir, manifest.EventsPath))
	if err != nil {
		return nil, err
	}
	frameFile, err := os.Create(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		eventFile.Close()
		return nil, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventFile.Close()
		return nil, err
	}

	return &Writer{
		dir:         dir,
		now:         clock,
		eventFile:   eventFile,
		eventStream: snappy.NewBufferedWriter(eventFile),
		frameFile:   frameFile,
		frameStream: frameStream,
	}, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Event is one line of the replay event log.
type Event struct {
	Tick       uint64          `json:"tick"`
	SimTime    float64         `json:"sim_time"`
	CapturedAt string          `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// AppendEvent writes one event line to the compressed log. payload must be
// JSON-marshalable; nil is allowed for payload-free events.
func (w *Writer) AppendEvent(tick uint64, simTime float64, eventType string, payload any) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	event := Event{
		Tick:       tick,
		SimTime:    simTime,
		CapturedAt: w.now().UTC().Format(time.RFC3339Nano),
		Type:       eventType,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		event.Payload = raw
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer already closed")
	}
	if _, err := w.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := w.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	//1.- Flush per event so a crash loses at most the current line.
	return w.eventStream.Flush()
}

// AppendFrame writes one length-prefixed frame to the compressed stream.
func (w *Writer) AppendFrame(payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer already closed")
	}
	//1.- A little-endian length prefix lets readers walk the stream without
	// a delimiter convention inside the payload.
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.frameStream.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.frameStream.Write(payload)
	return err
}

// Close flushes and closes both sinks. Safe to call more than once.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(w.eventStream.Close())
	record(w.eventFile.Close())
	record(w.frameStream.Close())
	record(w.frameFile.Close())
	return firstErr
}
