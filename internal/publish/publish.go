// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package publish writes a composed page and its chart assets to disk.
// Every file is replaced atomically, so a web server reading the output
// directory never sees a partial file.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/page"
)

// PageName is the file name of the page inside an export directory.
const PageName = "index.html"

const filePerm = 0o644

// WritePage renders pg to path with fsync and atomic rename.
func WritePage(ctx context.Context, path string, pg *page.Page) error {
	return writeAtomic(ctx, path, pg.Render)
}

// ErrUnsafePath is returned for a resource path that would leave the export
// directory.
var ErrUnsafePath = errors.New("publish: path escapes export directory")

// Mount places the files of FS below Dir inside the export ("" is the root).
type Mount struct {
	Dir string
	FS  fs.FS
}

// Export writes pg as dir/index.html and copies every file of each mount
// below dir, keeping relative paths. Later mounts overwrite earlier ones.
func Export(ctx context.Context, dir string, pg *page.Page, mounts ...Mount) (int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}

	written := 0
	for _, m := range mounts {
		if m.FS == nil {
			continue
		}
		n, err := exportMount(ctx, dir, m)
		written += n
		if err != nil {
			return written, fmt.Errorf("export assets: %w", err)
		}
	}

	if err := WritePage(ctx, filepath.Join(dir, PageName), pg); err != nil {
		return written, err
	}
	written++

	logger := xglog.WithComponentFromContext(ctx, "publish")
	logger.Info().
		Str(xglog.FieldEvent, "publish.exported").
		Str(xglog.FieldPath, dir).
		Int("files", written).
		Msg("static page exported")
	return written, nil
}

func exportMount(ctx context.Context, dir string, m Mount) (int, error) {
	if m.Dir != "" && !filepath.IsLocal(filepath.FromSlash(m.Dir)) {
		return 0, fmt.Errorf("%w: %s", ErrUnsafePath, m.Dir)
	}
	written := 0
	err := fs.WalkDir(m.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := path.Join(m.Dir, p)
		if d.IsDir() || rel == PageName {
			return nil
		}
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := copyFile(ctx, m.FS, p, dst); err != nil {
			return err
		}
		written++
		return nil
	})
	return written, err
}

// WriteResources writes fetched resources below dir. Keys are slash
// separated paths relative to dir.
func WriteResources(ctx context.Context, dir string, files map[string][]byte) (int, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return 0, fmt.Errorf("%w: %s", ErrUnsafePath, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	written := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		dst := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		body := files[name]
		if err := writeAtomic(ctx, dst, func(w io.Writer) error {
			_, err := w.Write(body)
			return err
		}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func copyFile(ctx context.Context, fsys fs.FS, src, dst string) error {
	f, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	return writeAtomic(ctx, dst, func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
}

func writeAtomic(ctx context.Context, path string, write func(io.Writer) error) error {
	logger := xglog.WithComponentFromContext(ctx, "publish")

	// renameio handles temp file creation, fsync, atomic rename and cleanup
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(filePerm))
	if err != nil {
		return fmt.Errorf("create pending file %s: %w", path, err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, path).Msg("cleanup pending file")
		}
	}()

	if err := write(pendingFile); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
