// Package sink persists captured frames to disk.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/wgcapture/internal/logging"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

var log = logging.L("sink")

// Writer stores one frame under a sequence number.
type Writer interface {
	Write(seq uint64, frame capture.RawFrameData) error
}

// Metadata is the YAML sidecar written next to each raw frame.
type Metadata struct {
	Sequence   uint64    `yaml:"sequence"`
	Width      int32     `yaml:"width"`
	Height     int32     `yaml:"height"`
	Stride     int       `yaml:"stride"`
	Format     string    `yaml:"format"`
	Bytes      int       `yaml:"bytes"`
	CapturedAt time.Time `yaml:"captured_at"`
	RawFile    string    `yaml:"raw_file"`
}

// containedPath ensures that the resolved path stays within basePath.
func containedPath(basePath, untrustedPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absJoined, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(untrustedPath)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) && absJoined != absBase {
		return "", fmt.Errorf("path traversal detected: %q resolves outside base %q", untrustedPath, absBase)
	}
	return absJoined, nil
}

// Dir writes frames as frame-NNNNNN.bgra plus frame-NNNNNN.yaml under a
// root directory.
type Dir struct {
	root   string
	prefix string
	now    func() time.Time
}

// NewDir creates root if needed and returns a Dir writing into it.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("sink output directory is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Dir{root: root, prefix: "frame", now: time.Now}, nil
}

// Root returns the directory frames are written to.
func (d *Dir) Root() string { return d.root }

// Name returns the base file name, without extension, for seq.
func (d *Dir) Name(seq uint64) string {
	return fmt.Sprintf("%s-%06d", d.prefix, seq)
}

// Write stores frame under seq. The raw file is written to a temporary name
// and renamed so a reader never sees a partial frame.
func (d *Dir) Write(seq uint64, frame capture.RawFrameData) error {
	if !frame.Valid() {
		return fmt.Errorf("frame %d: %w", seq, &capture.AdapterError{
			Adapter: "sink",
			Msg:     fmt.Sprintf("buffer holds %d bytes, want %d", len(frame.Data), frame.Stride()*int(frame.Height)),
		})
	}

	name := d.Name(seq)
	rawPath, err := containedPath(d.root, name+".bgra")
	if err != nil {
		return err
	}
	metaPath, err := containedPath(d.root, name+".yaml")
	if err != nil {
		return err
	}

	if err := writeAtomic(rawPath, frame.Data); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", seq, err)
	}

	meta := Metadata{
		Sequence:   seq,
		Width:      frame.Width,
		Height:     frame.Height,
		Stride:     frame.Stride(),
		Format:     capture.PixelFormatB8G8R8A8UNorm.String(),
		Bytes:      len(frame.Data),
		CapturedAt: d.now().UTC(),
		RawFile:    filepath.Base(rawPath),
	}
	out, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for frame %d: %w", seq, err)
	}
	if err := writeAtomic(metaPath, out); err != nil {
		return fmt.Errorf("failed to write metadata for frame %d: %w", seq, err)
	}

	log.Debug("frame written", logging.KeySequence, seq, "path", rawPath, "bytes", len(frame.Data))
	return nil
}

// ReadMetadata loads the sidecar written for seq.
func (d *Dir) ReadMetadata(seq uint64) (Metadata, error) {
	var meta Metadata
	path, err := containedPath(d.root, d.Name(seq)+".yaml")
	if err != nil {
		return meta, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
