package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/fileutil"
)

// FS writes blobs into two local directories.
type FS struct {
	attachmentsDir string
	htmlDir        string
}

var _ Store = (*FS)(nil)

// NewFS creates both directories if they do not exist.
func NewFS(attachmentsDir, htmlDir string) (*FS, error) {
	for _, dir := range []string{attachmentsDir, htmlDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FS{attachmentsDir: attachmentsDir, htmlDir: htmlDir}, nil
}

func (f *FS) Name() string { return "fs" }

// Put creates the file exclusively; an existing file with the same name is an error.
func (f *FS) Put(ctx context.Context, kind Kind, name, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := f.dir(kind)
	if err != nil {
		return err
	}
	p := filepath.Join(dir, name)
	if err := fileutil.WriteFileExclusive(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Path returns where a blob of kind with name lives on disk.
func (f *FS) Path(kind Kind, name string) string {
	dir, err := f.dir(kind)
	if err != nil {
		return ""
	}
	return filepath.Join(dir, name)
}

func (f *FS) dir(kind Kind) (string, error) {
	switch kind {
	case KindAttachment:
		return f.attachmentsDir, nil
	case KindHTML:
		return f.htmlDir, nil
	default:
		return "", fmt.Errorf("unknown blob kind %q", kind)
	}
}
