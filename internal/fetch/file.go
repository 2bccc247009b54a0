package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"media-viewer-engine/internal/filesystem"
	"media-viewer-engine/internal/media"
)

// DefaultCompressedDir is the subdirectory holding compressed renditions,
// mirroring the layout of the root.
const DefaultCompressedDir = ".compressed"

// FileFetcher reads by-path references from a local directory tree.
//
// Original quality reads {root}/{path}. Compressed quality reads
// {root}/{compressedDir}/{path} and falls back to the original when no
// rendition exists. Either way the original's size is reported as the size
// hint.
type FileFetcher struct {
	root          string
	compressedDir string
	retry         filesystem.RetryConfig
}

// NewFileFetcher creates a fetcher rooted at root.
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{
		root:          root,
		compressedDir: DefaultCompressedDir,
		retry:         filesystem.DefaultRetryConfig(),
	}
}

// resolve joins rel onto dir and rejects paths that escape it.
func resolve(dir, rel string) (string, error) {
	full := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+rel)))
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if absFull != absDir && !strings.HasPrefix(absFull, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes root: %s", media.ErrInvalidReference, rel)
	}
	return full, nil
}

// Fetch reads the referenced file.
func (f *FileFetcher) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	if ref.Kind() != media.KindPath {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref.Kind())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	originalPath, err := resolve(f.root, ref.Path)
	if err != nil {
		return nil, err
	}
	info, err := filesystem.StatWithRetry(ctx, originalPath, f.retry)
	if err != nil {
		return nil, notFound(err, ref)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, ref.Path)
	}

	readPath := originalPath
	if ref.EffectiveQuality() == media.QualityCompressed {
		compressed, err := resolve(filepath.Join(f.root, f.compressedDir), ref.Path)
		if err == nil {
			if _, err := filesystem.StatWithRetry(ctx, compressed, f.retry); err == nil {
				readPath = compressed
			}
		}
	}

	data, err := filesystem.ReadFileWithRetry(ctx, readPath, f.retry)
	if err != nil {
		return nil, notFound(err, ref)
	}

	return &Payload{
		Data:        data,
		ContentType: contentTypeFor("", readPath, data),
		Meta: map[string]string{
			media.SizeHintKey: fmt.Sprintf("originalSize=%d; source=file", info.Size()),
		},
	}, nil
}

func notFound(err error, ref media.Reference) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
	}
	return err
}
