// Package source implements the pipeline's source adapters: "csv" rows whose
// seeds are image URLs fetched over HTTP, and "folder" rows whose seeds are
// local image files.
package source

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"
)

// FileHandle is an opaque reference to a local file picked by the user.
type FileHandle interface {
	Name() string
	// Type is the MIME type, e.g. "image/png". Empty when unknown.
	Type() string
	Open() (io.ReadCloser, error)
}

// IsImage reports whether a handle's MIME type is an image type.
func IsImage(f FileHandle) bool {
	return strings.HasPrefix(f.Type(), "image/")
}

// fsFile is a FileHandle backed by an fs.FS entry.
type fsFile struct {
	fsys fs.FS
	path string
	mime string
}

func (f *fsFile) Name() string { return path.Base(f.path) }
func (f *fsFile) Type() string { return f.mime }

// String keeps the handle readable when a row is rendered as text.
func (f *fsFile) String() string { return f.path }

func (f *fsFile) Open() (io.ReadCloser, error) {
	return f.fsys.Open(f.path)
}

// NewFileHandle wraps the file at name inside fsys. The MIME type is guessed
// from the extension.
func NewFileHandle(fsys fs.FS, name string) FileHandle {
	return &fsFile{fsys: fsys, path: name, mime: typeByExtension(name)}
}

// ScanDir lists every regular file under root in fsys, in walk order.
// Hidden files and directories are skipped. Non-image files are returned too;
// Folder.Load filters them.
func ScanDir(fsys fs.FS, root string) ([]FileHandle, error) {
	if root == "" {
		root = "."
	}
	var out []FileHandle
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, NewFileHandle(fsys, p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return out, nil
}

func typeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	switch ext {
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	}
	t, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil {
		return ""
	}
	return t
}
