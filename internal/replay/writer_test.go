package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newTestWriter(t *testing.T, root string) *Writer {
	t.Helper()
	w, err := NewWriter(root, Manifest{TrackName: "Test Ring", RaceLaps: 3, Seed: 7, TickRate: 60}, fixedClock())
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	return w
}

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "events.jsonl.sz"))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(snappy.NewReader(f))
	var events []Event
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan events: %v", err)
	}
	return events
}

func readFrames(t *testing.T, dir string) [][]byte {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "frames.bin.zst"))
	if err != nil {
		t.Fatalf("open frames: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	var frames [][]byte
	for {
		var prefix [4]byte
		if _, err := io.ReadFull(dec, prefix[:]); err == io.EOF {
			return frames
		} else if err != nil {
			t.Fatalf("read prefix: %v", err)
		}
		payload := make([]byte, binary.LittleEndian.Uint32(prefix[:]))
		if _, err := io.ReadFull(dec, payload); err != nil {
			t.Fatalf("read payload: %v", err)
		}
		frames = append(frames, payload)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	root := t.TempDir()
	w := newTestWriter(t, root)

	if err := w.AppendEvent(10, 0.166, "phase", map[string]string{"phase": "racing"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := w.AppendFrame([]byte(`{"tick":10}`)); err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if err := w.AppendFrame([]byte(`{"tick":22}`)); err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	//1.- The manifest documents the bundle and its reproduction inputs.
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(w.Directory(), "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.TrackName != "Test Ring" || manifest.Seed != 7 || manifest.Version != 1 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}

	events := readEvents(t, w.Directory())
	if len(events) != 1 || events[0].Type != "phase" || events[0].Tick != 10 {
		t.Fatalf("unexpected events: %+v", events)
	}

	frames := readFrames(t, w.Directory())
	if len(frames) != 2 || string(frames[1]) != `{"tick":22}` {
		t.Fatalf("unexpected frames: %q", frames)
	}
}

func TestWriterRejectsAfterClose(t *testing.T) {
	w := newTestWriter(t, t.TempDir())
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
	if err := w.AppendEvent(1, 0, "phase", nil); err == nil {
		t.Fatalf("expected error appending after close")
	}
	if err := w.AppendFrame(nil); err == nil {
		t.Fatalf("expected error framing after close")
	}
}
