// Package snapshot stores fetched aircraft so a run can be replayed without
// hitting the APIs again.
//
// The file format is a msgpack-encoded File compressed with zstd.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unklstewy/ads-routes/pkg/adsb"
)

// Version is written into every file; Read rejects other versions.
const Version = 1

// Frame is one fetch round.
type Frame struct {
	FetchedAt time.Time
	Source    string
	Aircraft  []adsb.Aircraft
}

// File is a sequence of frames.
type File struct {
	Version int
	Created time.Time
	Frames  []Frame

	mu sync.Mutex
}

// New returns an empty file stamped with the current time.
func New() *File {
	return &File{Version: Version, Created: time.Now().UTC()}
}

// Append adds a frame. It is safe for concurrent use.
func (f *File) Append(source string, fetchedAt time.Time, aircraft []adsb.Aircraft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = append(f.Frames, Frame{FetchedAt: fetchedAt.UTC(), Source: source, Aircraft: aircraft})
}

// AircraftCount returns the number of aircraft over all frames.
func (f *File) AircraftCount() int {
	n := 0
	for _, fr := range f.Frames {
		n += len(fr.Aircraft)
	}
	return n
}

// Write encodes f to w.
func Write(w io.Writer, f *File) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(f); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// Read decodes a file written by Write.
func Read(r io.Reader) (*File, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var f File
	if err := msgpack.NewDecoder(zr).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", f.Version)
	}
	return &f, nil
}

// Save writes f to path.
func Save(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Load reads a file from path.
func Load(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return Read(in)
}

// Replay serves the frames of a file as a data source, one frame per
// Snapshot call. After the last frame it returns io.EOF.
type Replay struct {
	name string

	mu   sync.Mutex
	file *File
	next int
}

// NewReplay creates a replay source over f.
func NewReplay(name string, f *File) *Replay {
	return &Replay{name: name, file: f}
}

// Name identifies the replayed file.
func (r *Replay) Name() string {
	return "snapshot:" + r.name
}

// Snapshot returns the next frame filtered to region.
func (r *Replay) Snapshot(ctx context.Context, region adsb.Region) ([]adsb.Aircraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.file.Frames) {
		return nil, io.EOF
	}
	fr := r.file.Frames[r.next]
	r.next++
	return adsb.Filter(fr.Aircraft, region), nil
}

// Remaining returns the number of frames not yet served.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.file.Frames) - r.next
}

// Global reports that replayed frames are filtered locally.
func (r *Replay) Global() bool { return true }

// Close is a no-op.
func (r *Replay) Close() error { return nil }
