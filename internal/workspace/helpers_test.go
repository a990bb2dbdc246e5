package workspace

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func pngData() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for x := 0; x < 80; x++ {
		img.Set(x, 20, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	gomega.Expect(png.Encode(&buf, img)).To(gomega.Succeed())
	return buf.Bytes()
}

// imageHost serves PNGs under /img/ and 404s everywhere else. Requests to
// /slow/ block until release is closed.
type imageHost struct {
	*httptest.Server
	release chan struct{}
	once    sync.Once
}

func newImageHost() *imageHost {
	data := pngData()
	h := &imageHost{release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	})
	mux.HandleFunc("/slow/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-h.release:
		case <-r.Context().Done():
			return
		}
		w.Write(data)
	})
	h.Server = httptest.NewServer(mux)
	ginkgo.DeferCleanup(func() {
		h.Release()
		h.Close()
	})
	return h
}

// Release unblocks every pending /slow/ request.
func (h *imageHost) Release() { h.once.Do(func() { close(h.release) }) }

func writeCSV(lines ...string) string {
	path := filepath.Join(ginkgo.GinkgoT().TempDir(), "input.csv")
	gomega.Expect(os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)).To(gomega.Succeed())
	return path
}

func zipEntries(data []byte) map[string]string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var bg = context.Background()
