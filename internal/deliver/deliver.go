// Package deliver pushes the rendered HTML digest to places a phone can
// see it. Deliverers are injected into the runner explicitly; a nil or
// absent deliverer just means the feature is off, and a failing
// delivery is logged, never fatal.
package deliver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Deliverer publishes one rendered HTML digest.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, htmlPath, date string) error
}

const icloudDocsRelPath = "Library/Mobile Documents/com~apple~CloudDocs"

// SyncedFolder copies the digest into a cloud-synced folder as a dated
// file plus a stable latest.html. A relative folder is resolved under
// the iCloud Drive documents root, which only exists on macOS.
type SyncedFolder struct {
	Folder string
}

func NewSyncedFolder(folder string) *SyncedFolder {
	return &SyncedFolder{Folder: folder}
}

func (s *SyncedFolder) Name() string { return "synced-folder" }

func (s *SyncedFolder) Deliver(_ context.Context, htmlPath, date string) error {
	dir := s.Folder
	if !filepath.IsAbs(dir) {
		if runtime.GOOS != "darwin" {
			return fmt.Errorf("deliver: iCloud folder delivery requires macOS (or an absolute folder path)")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("deliver: cannot locate home dir: %w", err)
		}
		dir = filepath.Join(home, icloudDocsRelPath, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("deliver: failed to create %s: %w", dir, err)
	}

	dated := filepath.Join(dir, fmt.Sprintf("digest-%s.html", date))
	if err := copyFile(htmlPath, dated); err != nil {
		return err
	}
	return copyFile(htmlPath, filepath.Join(dir, "latest.html"))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("deliver: failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("deliver: failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("deliver: failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
