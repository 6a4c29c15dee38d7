// Package store is the boundary to the image/document store: a catalog of
// images with JSON sidecars, raster bytes and documents by id, and the
// progress record.
package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"ocrlabel/internal/common"
	"ocrlabel/internal/progress"
)

// Entry is one catalog item.
type Entry struct {
	ID        string `json:"id"`
	ImagePath string `json:"imagePath"`
}

// Store is what the session needs from the outside world. SaveDocument is a
// full overwrite.
type Store interface {
	Catalog(ctx context.Context) ([]Entry, error)
	Image(ctx context.Context, id string) ([]byte, error)
	Document(ctx context.Context, id string) ([]byte, error)
	SaveDocument(ctx context.Context, id string, data []byte) error
	Progress(ctx context.Context) (progress.Record, error)
	MarkViewed(ctx context.Context, id string) error
	MarkUpdated(ctx context.Context, id string) error
}

var imageExts = []string{".jpg", ".jpeg", ".png"}

// IsImage reports whether name has a supported raster extension.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// CheckID rejects ids that could escape the data directory.
func CheckID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return common.Invalidf("bad image id %q", id)
	}
	return nil
}

// Open returns a Client when cfg.ServerURL is set and a Dir otherwise. The
// tracker only backs a Dir; a Client keeps progress on the server.
func Open(cfg common.StoreConfig, tracker progress.Tracker, logger *slog.Logger) Store {
	if cfg.ServerURL != "" {
		return NewClient(cfg.ServerURL, cfg.HTTPTimeout, logger)
	}
	return NewDir(cfg.DataDir, tracker, logger)
}
