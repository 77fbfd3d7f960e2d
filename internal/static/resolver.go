// Package static resolves request paths to files beneath a fixed root.
//
// Containment is checked after symlinks are resolved, against the canonical
// root, and the file is then read through an os.Root handle so a link swapped
// in between the check and the read still cannot leave the root.
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ark-proxy-go/internal/config"
)

var (
	// ErrNotFound is returned for missing files, directories and hidden paths.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a path resolves outside the root.
	ErrForbidden = errors.New("forbidden")
)

// DefaultContentType is served for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".txt":  "text/plain; charset=utf-8",
}

// ContentType maps a file name to its content type by extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return DefaultContentType
}

// File is a resolved static file.
type File struct {
	Name        string // path relative to the root, slash separated
	Data        []byte
	ContentType string
}

// Resolver serves files from beneath a canonical root directory.
type Resolver struct {
	root   string // absolute, symlink-free
	index  string
	dir    *os.Root
	logger *slog.Logger
}

// NewResolver canonicalises the configured root and opens it.
func NewResolver(cfg *config.Config, logger *slog.Logger) (*Resolver, error) {
	abs, err := filepath.Abs(cfg.Static.Root)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", cfg.Static.Root, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", cfg.Static.Root, err)
	}
	dir, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open static root %q: %w", root, err)
	}

	index := cfg.Static.Index
	if index == "" {
		index = config.DefaultIndex
	}

	return &Resolver{
		root:   root,
		index:  index,
		dir:    dir,
		logger: logger.With("component", "static"),
	}, nil
}

// Close releases the root directory handle.
func (r *Resolver) Close() error {
	return r.dir.Close()
}

// Resolve maps a URL path to a file beneath the root.
func (r *Resolver) Resolve(requestPath string) (*File, error) {
	if requestPath == "" || requestPath == "/" {
		requestPath = "/" + r.index
	}
	if strings.ContainsRune(requestPath, 0) {
		return nil, ErrForbidden
	}

	// Cleaning as a rooted path collapses "." and ".." and drops any leading
	// parent segments, so the lexical result is always under "/".
	rel := strings.TrimPrefix(path.Clean("/"+requestPath), "/")
	if rel == "" || hidden(rel) {
		return nil, ErrNotFound
	}

	candidate := filepath.Join(r.root, filepath.FromSlash(rel))
	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("resolve failed", "path", rel, "err", err)
		}
		return nil, ErrNotFound
	}
	if !r.contains(real) {
		r.logger.Warn("static path escapes root", "path", rel)
		return nil, ErrForbidden
	}

	inRoot, err := filepath.Rel(r.root, real)
	if err != nil {
		return nil, ErrForbidden
	}
	if hidden(filepath.ToSlash(inRoot)) {
		return nil, ErrNotFound
	}

	info, err := r.dir.Stat(inRoot)
	if err != nil {
		return nil, r.openError(rel, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := r.dir.ReadFile(inRoot)
	if err != nil {
		return nil, r.openError(rel, err)
	}

	return &File{
		Name:        rel,
		Data:        data,
		ContentType: ContentType(rel),
	}, nil
}

// contains reports whether p is the root or a descendant of it.
func (r *Resolver) contains(p string) bool {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (r *Resolver) openError(rel string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return ErrNotFound
	}
	// os.Root refuses paths that leave the root, including links swapped in
	// after EvalSymlinks.
	r.logger.Warn("static read refused", "path", rel, "err", err)
	return ErrForbidden
}

// hidden reports whether any segment of a slash-separated path is a dotfile.
func hidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
