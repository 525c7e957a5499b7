// Package snapshot persists the authority's scene and actor state as
// zstd-compressed JSON with a versioned header.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/scene"
)

const version = 1

type Header struct {
	Version int    `json:"version"`
	SceneID string `json:"scene_id,omitempty"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	GridSize float64        `json:"grid_size"`
	Tokens   []scene.Token  `json:"tokens"`
	Actors   []actors.Actor `json:"actors"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	snap.Header.Version = version
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Header.Version != version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
