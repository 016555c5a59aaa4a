package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/TFMV/kirby/pkg/core"
	"github.com/TFMV/kirby/pkg/writers"
)

// Uploader copies a finished archive file somewhere durable and returns its
// location.
type Uploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
}

// FileArchiver writes each archived RowSet to its own file under Dir.
type FileArchiver struct {
	Dir      string
	Format   string
	Factory  *writers.Factory
	Uploader Uploader
	Logger   *zap.Logger
	Alloc    memory.Allocator
}

// NewFileArchiver validates the format and creates dir.
func NewFileArchiver(cfg core.ArchiveConfig, uploader Uploader, logger *zap.Logger) (*FileArchiver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := writers.DefaultFactory.Extension(cfg.Type); !ok {
		return nil, fmt.Errorf("unsupported archive format %q (supported: %s)",
			cfg.Type, strings.Join(writers.DefaultFactory.Types(), ", "))
	}
	dir := cfg.Path
	if dir == "" {
		dir = "archive"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileArchiver{
		Dir:      dir,
		Format:   cfg.Type,
		Factory:  writers.DefaultFactory,
		Uploader: uploader,
		Logger:   logger,
		Alloc:    memory.NewGoAllocator(),
	}, nil
}

// Archive writes rows and returns the file path, or the upload location when
// an Uploader is configured. Empty row sets are not archived.
func (a *FileArchiver) Archive(ctx context.Context, runID string, rows *core.RowSet) (string, error) {
	if rows.Len() == 0 {
		return "", nil
	}
	ext, ok := a.Factory.Extension(a.Format)
	if !ok {
		return "", fmt.Errorf("unsupported archive format %q", a.Format)
	}
	name := fmt.Sprintf("%s-%s.%s", FileSafe(rows.Table), runID, ext)
	path := filepath.Join(a.Dir, name)

	if err := a.write(ctx, path, rows); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	a.Logger.Debug("Archive written", zap.String("path", path), zap.Int("rows", rows.Len()))

	if a.Uploader == nil {
		return path, nil
	}
	location, err := a.Uploader.Upload(ctx, name, path)
	if err != nil {
		return "", fmt.Errorf("failed to upload archive %s: %w", path, err)
	}
	return location, nil
}

func (a *FileArchiver) write(ctx context.Context, path string, rows *core.RowSet) error {
	record, err := Record(a.alloc(), rows)
	if err != nil {
		return fmt.Errorf("failed to build archive record: %w", err)
	}
	defer record.Release()

	w, err := a.Factory.Create(writers.Config{Type: a.Format, Path: path})
	if err != nil {
		return err
	}
	if err := w.Write(ctx, record); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func (a *FileArchiver) alloc() memory.Allocator {
	if a.Alloc == nil {
		return memory.DefaultAllocator
	}
	return a.Alloc
}

// FileSafe replaces characters that do not belong in a file name.
func FileSafe(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
	if safe == "" {
		return "table"
	}
	return safe
}
