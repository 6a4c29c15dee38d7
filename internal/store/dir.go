package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/common"
	"ocrlabel/internal/progress"
)

// SidecarIndent is the indent used when writing documents.
const SidecarIndent = "    "

// Dir serves images and <id>.json sidecars from one directory.
type Dir struct {
	root    string
	tracker progress.Tracker
	logger  *slog.Logger
}

// NewDir returns a store over root. A nil tracker keeps progress in memory.
func NewDir(root string, tracker progress.Tracker, logger *slog.Logger) *Dir {
	if tracker == nil {
		tracker = progress.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, tracker: tracker, logger: logger}
}

// Catalog lists images that have a sidecar, sorted by file name.
func (d *Dir) Catalog(ctx context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	var out []Entry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsImage(name) {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if !names[id+".json"] {
			continue
		}
		out = append(out, Entry{ID: id, ImagePath: name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ImagePath < out[j].ImagePath })
	d.logger.Debug("store.catalog", "dir", d.root, "count", len(out))
	return out, ctx.Err()
}

// ImagePath finds the raster file for id.
func (d *Dir) ImagePath(id string) (string, error) {
	if err := CheckID(id); err != nil {
		return "", err
	}
	for _, ext := range imageExts {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(d.root, id+e)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, nil
			}
		}
	}
	return "", common.NotFoundf("image %q", id)
}

func (d *Dir) Image(_ context.Context, id string) ([]byte, error) {
	p, err := d.ImagePath(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (d *Dir) sidecar(id string) (string, error) {
	if err := CheckID(id); err != nil {
		return "", err
	}
	return filepath.Join(d.root, id+".json"), nil
}

func (d *Dir) Document(_ context.Context, id string) ([]byte, error) {
	p, err := d.sidecar(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFoundf("document %q", id)
	}
	return data, err
}

// SaveDocument overwrites the sidecar with data re-indented by SidecarIndent.
// data must be a JSON object; key order and malformed values are kept as sent.
func (d *Dir) SaveDocument(_ context.Context, id string, data []byte) error {
	p, err := d.sidecar(id)
	if err != nil {
		return err
	}
	if _, err := annotate.Parse(data); err != nil {
		return common.NewAppError("INVALID_JSON", "document is not a JSON object", errors.Join(common.ErrInvalidInput, err))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", SidecarIndent); err != nil {
		return common.NewAppError("INVALID_JSON", "document is not valid JSON", errors.Join(common.ErrInvalidInput, err))
	}
	tmp, err := os.CreateTemp(d.root, "."+id+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %q: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save %q: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %q: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("save %q: %w", id, err)
	}
	d.logger.Info("store.save", "id", id, "bytes", buf.Len())
	return nil
}

func (d *Dir) Progress(ctx context.Context) (progress.Record, error) {
	return d.tracker.Load(ctx)
}

func (d *Dir) MarkViewed(ctx context.Context, id string) error {
	if err := CheckID(id); err != nil {
		return err
	}
	return d.tracker.MarkViewed(ctx, id)
}

func (d *Dir) MarkUpdated(ctx context.Context, id string) error {
	if err := CheckID(id); err != nil {
		return err
	}
	return d.tracker.MarkUpdated(ctx, id)
}
