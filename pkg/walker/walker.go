// Package walker enumerates candidate files under include/exclude glob
// filters, skipping binaries, oversized files, and symlink cycles.
package walker

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sentinelscan/sentinel/pkg/logme"
)

// DefaultMaxFileSize caps how large a file the scanner will read.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

const sniffLen = 512

// File is one candidate emitted by Walk.
type File struct {
	// Path is the filesystem path used to open the file.
	Path string
	// Rel is the slash-separated path relative to the walk root,
	// used for glob matching and reporting.
	Rel string
	// Size in bytes.
	Size int64
}

type Options struct {
	// Includes restricts the walk to matching paths. Empty means
	// everything.
	Includes []string
	// Excludes always win over includes.
	Excludes []string
	// MaxFileSize defaults to DefaultMaxFileSize when zero.
	MaxFileSize int64
	// OnSkip is called for every file skipped with a reason. May be
	// nil.
	OnSkip func(rel string, reason string)
}

// Walk streams candidate files under root. The sequence is finite and
// lazily produced; cancel ctx to stop early. A walk cannot be resumed,
// only restarted from scratch.
func Walk(ctx context.Context, root string, opts Options) <-chan File {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	out := make(chan File)
	w := &walker{
		root:    root,
		opts:    opts,
		out:     out,
		visited: make(map[string]bool),
	}

	go func() {
		defer close(out)
		real, err := filepath.EvalSymlinks(root)
		if err != nil {
			logme.DebugFln("walk root %s: %v", root, err)
			return
		}
		w.visited[real] = true
		w.walkDir(ctx, root, "")
	}()

	return out
}

type walker struct {
	root    string
	opts    Options
	out     chan File
	visited map[string]bool // resolved directory paths, for cycle safety
}

func (w *walker) walkDir(ctx context.Context, dir string, rel string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(rel, "unreadable directory")
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		entryRel := entry.Name()
		if rel != "" {
			entryRel = rel + "/" + entry.Name()
		}
		entryPath := filepath.Join(dir, entry.Name())

		info, err := resolve(entry, entryPath)
		if err != nil {
			w.skip(entryRel, "unreadable")
			continue
		}

		if info.IsDir() {
			if w.excluded(entryRel) || w.excluded(entryRel+"/") {
				continue
			}
			real, err := filepath.EvalSymlinks(entryPath)
			if err != nil {
				w.skip(entryRel, "broken link")
				continue
			}
			if w.visited[real] {
				// symlink cycle or a directory reachable twice
				continue
			}
			w.visited[real] = true
			w.walkDir(ctx, entryPath, entryRel)
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		w.emit(ctx, entryPath, entryRel, info.Size())
	}
}

func (w *walker) emit(ctx context.Context, path, rel string, size int64) {
	if w.excluded(rel) {
		return
	}
	if !w.included(rel) {
		return
	}
	if size > w.opts.MaxFileSize {
		w.skip(rel, "exceeds size cap")
		return
	}
	binary, err := isBinary(path)
	if err != nil {
		w.skip(rel, "unreadable")
		return
	}
	if binary {
		w.skip(rel, "binary")
		return
	}

	select {
	case w.out <- File{Path: path, Rel: rel, Size: size}:
	case <-ctx.Done():
	}
}

func (w *walker) excluded(rel string) bool {
	for _, pattern := range w.opts.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *walker) included(rel string) bool {
	if len(w.opts.Includes) == 0 {
		return true
	}
	for _, pattern := range w.opts.Includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *walker) skip(rel, reason string) {
	if w.opts.OnSkip != nil {
		w.opts.OnSkip(rel, reason)
	}
}

// resolve follows a symlink entry to its target info; regular entries
// return their own info.
func resolve(entry os.DirEntry, path string) (os.FileInfo, error) {
	if entry.Type()&os.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return entry.Info()
}

// isBinary sniffs the first 512 bytes for a NUL byte. Extension is
// deliberately ignored.
func isBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
