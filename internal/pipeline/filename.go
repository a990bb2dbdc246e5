package pipeline

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultExtension is appended to derived filenames that have none.
const DefaultExtension = ".jpg"

// FilenameSet tracks the artifact filenames issued within one batch.
type FilenameSet map[string]struct{}

// Has reports whether name was already issued.
func (s FilenameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add records name as issued.
func (s FilenameSet) Add(name string) { s[name] = struct{}{} }

// UniqueFilename derives an artifact filename from a URL: the last path
// segment without query, with ext appended when it has no extension. When
// the name is taken a numeric suffix goes before the extension (a.png,
// a_1.png, a_2.png). URLs that cannot be parsed, or have no absolute form,
// fall back to image_<index>.jpg through the same suffix loop. The caller
// records the returned name.
func UniqueFilename(rawURL string, index int, used FilenameSet, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nextFree(fmt.Sprintf("image_%d", index), DefaultExtension, used)
	}

	// u.Path is already unescaped. A trailing slash means no last segment.
	name := u.Path[strings.LastIndex(u.Path, "/")+1:]
	name = sanitize(name)

	name = strings.TrimRight(name, ".")
	if name == "" {
		name = fmt.Sprintf("image_%d", index)
	}
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return nextFree(name, ext, used)
	}
	return nextFree(name[:dot], name[dot:], used)
}

func nextFree(stem, ext string, used FilenameSet) string {
	candidate := stem + ext
	for n := 1; used.Has(candidate); n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	return candidate
}

// sanitize keeps archive entry names flat and portable.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
}
