// Package archive builds an in-memory zip bundle entry by entry and hands
// back the finished bytes.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrFinalized is returned when an archive is written after Finalize.
var ErrFinalized = errors.New("archive already finalized")

// Archive is an in-progress zip file.
type Archive struct {
	buf     bytes.Buffer
	w       *zip.Writer
	entries map[string]bool
	done    bool
	modTime time.Time
}

// New opens an empty archive.
func New() *Archive {
	a := &Archive{entries: make(map[string]bool), modTime: time.Now()}
	a.w = zip.NewWriter(&a.buf)
	return a
}

// AddFolder creates a directory entry. Adding an existing folder is a no-op.
func (a *Archive) AddFolder(name string) error {
	name = strings.Trim(path.Clean("/"+name), "/") + "/"
	if name == "/" {
		return nil
	}
	if a.done {
		return ErrFinalized
	}
	if a.entries[name] {
		return nil
	}
	if _, err := a.w.CreateHeader(&zip.FileHeader{Name: name, Modified: a.modTime}); err != nil {
		return fmt.Errorf("add folder %s: %w", name, err)
	}
	a.entries[name] = true
	return nil
}

// AddFile stores data under name. Names are slash separated; duplicate
// names are rejected.
func (a *Archive) AddFile(name string, data []byte) error {
	if a.done {
		return ErrFinalized
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return errors.New("empty archive entry name")
	}
	if a.entries[name] {
		return fmt.Errorf("duplicate archive entry %s", name)
	}
	if dir := path.Dir(name); dir != "." {
		if err := a.AddFolder(dir); err != nil {
			return err
		}
	}
	fw, err := a.w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: a.modTime})
	if err != nil {
		return fmt.Errorf("add file %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	a.entries[name] = true
	return nil
}

// Has reports whether a file or folder called name was added.
func (a *Archive) Has(name string) bool {
	n := strings.TrimPrefix(path.Clean("/"+name), "/")
	return a.entries[n] || a.entries[n+"/"]
}

// Finalize closes the archive and returns its bytes. Further writes fail.
func (a *Archive) Finalize() ([]byte, error) {
	if a.done {
		return nil, ErrFinalized
	}
	if err := a.w.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	a.done = true
	return a.buf.Bytes(), nil
}
