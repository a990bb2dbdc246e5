package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"imgnet/adapters/source"
	"imgnet/internal/dataset"
	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/output"
	"imgnet/internal/pipeline"
)

var _ = ginkgo.Describe("Workspace", func() {
	var (
		bus   *events.Local
		rec   *events.Recorder
		saver *output.Memory
		ws    *Workspace
		host  *imageHost
	)

	ginkgo.BeforeEach(func() {
		bus = events.NewLocal()
		rec = events.Record(bus)
		saver = &output.Memory{}
		ws = New(Options{Bus: bus, Saver: saver})
		host = newImageHost()
	})

	ginkgo.AfterEach(func() {
		rec.Close()
	})

	statuses := func() []string {
		src, err := ws.GetSource(source.KindRemote)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		var out []string
		for _, r := range src.Rows() {
			out = append(out, r.Status())
		}
		return out
	}

	ginkgo.It("fetches a table into a zip bundle with unique names", func() {
		path := writeCSV(
			"id,url",
			"1,"+host.URL+"/img/a.png",
			"2,",
			"3,"+host.URL+"/img/other/a.png",
		)
		headers, err := ws.LoadCSV(bg, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(headers).To(gomega.Equal([]string{"inm_status", "inm_imgdataurl", "inm_filename", "id", "url"}))

		sum, err := ws.RunBatch(bg, "csv", "url", "zip")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Processed).To(gomega.Equal(3))
		gomega.Expect(sum.Succeeded).To(gomega.Equal(2))
		gomega.Expect(sum.Empty).To(gomega.Equal(1))
		gomega.Expect(statuses()).To(gomega.Equal([]string{"success", "empty", "success"}))

		gomega.Expect(ws.Export(bg, "csv", "zip")).To(gomega.Succeed())
		data, ok := saver.Get("imgnetmaker.zip")
		gomega.Expect(ok).To(gomega.BeTrue())
		files := zipEntries(data)
		gomega.Expect(keys(files)).To(gomega.Equal([]string{"images.csv", "images/", "images/a.png", "images/a_1.png"}))
		gomega.Expect(files["images.csv"]).To(gomega.ContainSubstring("success,data:image/jpeg;base64,"))
		gomega.Expect(files["images.csv"]).To(gomega.ContainSubstring(",a_1.png,3,"))

		progress := rec.Named(events.Progress)
		gomega.Expect(progress).To(gomega.HaveLen(3))
		gomega.Expect(progress[2].Payload.(pipeline.ProgressEvent).Current).To(gomega.Equal(3))
		gomega.Expect(rec.Named(events.ExportDone)).To(gomega.HaveLen(1))
	})

	ginkgo.It("records a 404 on its row and keeps going", func() {
		missing := host.URL + "/nope/b.png"
		path := writeCSV("url", host.URL+"/img/a.png", missing, host.URL+"/img/c.png")
		_, err := ws.LoadCSV(bg, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		sum, err := ws.RunBatch(bg, "csv", "url", "csv")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Failed).To(gomega.Equal(1))
		gomega.Expect(statuses()).To(gomega.Equal([]string{"success", "HTTPError 404 Not Found", "success"}))

		logs := rec.Named(events.LogAdd)
		gomega.Expect(logs).To(gomega.HaveLen(1))
		entry := logs[0].Payload.(logging.Entry)
		gomega.Expect(entry.Severity).To(gomega.Equal(logging.SeverityError))
		gomega.Expect(entry.Details).To(gomega.HaveKeyWithValue("row", 2))
		gomega.Expect(entry.Details).To(gomega.HaveKeyWithValue("statusCode", "404"))
		gomega.Expect(entry.Details).To(gomega.HaveKeyWithValue("name", pipeline.NameNotFound))
		gomega.Expect(entry.Details).To(gomega.HaveKeyWithValue("url", missing))

		stats, err := ws.Stats("csv")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(stats).To(gomega.Equal(pipeline.Stats{Total: 3, Successful: 2, Failed: 1, Progress: 1}))

		gomega.Expect(ws.Export(bg, "csv", "csv")).To(gomega.Succeed())
		data, _ := saver.Get("imgnetmaker.csv")
		gomega.Expect(string(data)).To(gomega.HavePrefix("inm_status,inm_imgdataurl,inm_filename,url\n"))
		gomega.Expect(string(data)).To(gomega.ContainSubstring("HTTPError 404 Not Found,,," + missing))
	})

	ginkgo.It("stops after the item in flight when asked mid-batch", func() {
		lines := []string{"url"}
		for _, n := range []string{"a", "b", "c", "d", "e"} {
			lines = append(lines, host.URL+"/img/"+n+".png")
		}
		_, err := ws.LoadCSV(bg, writeCSV(lines...))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		off := bus.On(events.Progress, func(ev events.Event) {
			if ev.Payload.(pipeline.ProgressEvent).Current == 2 {
				ws.Stop()
			}
		})
		defer off()

		sum, err := ws.RunBatch(bg, "csv", "url", "zip")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Stopped).To(gomega.BeTrue())
		gomega.Expect(sum.Processed).To(gomega.Equal(2))
		gomega.Expect(statuses()).To(gomega.Equal([]string{"success", "success", "", "", ""}))

		finish := rec.Named(events.BatchFinish)
		gomega.Expect(finish).To(gomega.HaveLen(1))
		gomega.Expect(finish[0].Payload.(pipeline.BatchEvent).Stopped).To(gomega.BeTrue())
		gomega.Expect(ws.Engine().State()).To(gomega.Equal(pipeline.StateIdle))

		stats, _ := ws.Stats("csv")
		gomega.Expect(stats.Pending).To(gomega.Equal(3))
	})

	ginkgo.It("refuses to export a bundle that was never started", func() {
		_, err := ws.LoadCSV(bg, writeCSV("url", host.URL+"/img/a.png"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		err = ws.Export(bg, "csv", "zip")
		var expErr *pipeline.ExportError
		gomega.Expect(errors.As(err, &expErr)).To(gomega.BeTrue())
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("no archive created yet"))
		gomega.Expect(saver.Names()).To(gomega.BeEmpty())

		logs := rec.Named(events.LogAdd)
		gomega.Expect(logs).To(gomega.HaveLen(1))
		gomega.Expect(logs[0].Payload.(logging.Entry).Details).To(gomega.HaveKeyWithValue("errorType", "ExportError"))
	})

	ginkgo.It("reports unreadable tables as parse errors", func() {
		_, err := ws.LoadCSV(bg, writeCSV("url,url", "a,b"))
		var perr *pipeline.ParseError
		gomega.Expect(errors.As(err, &perr)).To(gomega.BeTrue())
		gomega.Expect(rec.Named(events.LogAdd)).To(gomega.HaveLen(1))

		_, err = ws.LoadCSV(bg, filepath.Join(ginkgo.GinkgoT().TempDir(), "missing.csv"))
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("memoizes adapters per kind and rejects unknown kinds", func() {
		a, err := ws.GetSource("csv")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		b, _ := ws.GetSource("csv")
		gomega.Expect(a).To(gomega.BeIdenticalTo(b))

		_, err = ws.GetSource("ftp")
		gomega.Expect(errors.Is(err, pipeline.ErrUnknownKind)).To(gomega.BeTrue())
		_, err = ws.GetTarget("tar")
		gomega.Expect(errors.Is(err, pipeline.ErrUnknownKind)).To(gomega.BeTrue())
		_, err = ws.GetTarget("bucket")
		gomega.Expect(err).To(gomega.HaveOccurred(), "bucket needs configuration")

		gomega.Expect(ws.ClearAll()).To(gomega.Succeed())
		c, _ := ws.GetSource("csv")
		gomega.Expect(c).NotTo(gomega.BeIdenticalTo(a))
	})

	ginkgo.It("builds previews for a local folder", func() {
		dir := ginkgo.GinkgoT().TempDir()
		gomega.Expect(os.WriteFile(filepath.Join(dir, "a.png"), pngData(), 0o644)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(filepath.Join(dir, "readme.html"), []byte("hi"), 0o644)).To(gomega.Succeed())

		headers, err := ws.LoadFolder(bg, dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(headers).To(gomega.ContainElement(source.FieldFile))

		sum, err := ws.RunBatch(bg, "folder", source.FieldFile, "csv")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Succeeded).To(gomega.Equal(1))

		src, _ := ws.GetSource("folder")
		row := src.Rows()[0]
		gomega.Expect(row.String(dataset.FieldFilename)).To(gomega.Equal("a.png"))
		gomega.Expect(row.String(dataset.FieldThumbnail)).To(gomega.HavePrefix("data:image/jpeg;base64,"))

		_, err = ws.LoadFolder(bg, filepath.Join(dir, "a.png"))
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("runs one background batch at a time", func() {
		_, err := ws.LoadCSV(bg, writeCSV("url", host.URL+"/slow/a.png", host.URL+"/img/b.png"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		started := make(chan struct{})
		var once sync.Once
		off := bus.On(events.BatchStart, func(events.Event) { once.Do(func() { close(started) }) })
		defer off()

		ctx, cancel := context.WithCancel(bg)
		batch, err := ws.StartBatch(ctx, "csv", "url", "zip")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		// The batch must survive the caller's context.
		cancel()
		gomega.Eventually(started).Should(gomega.BeClosed())

		_, err = ws.StartBatch(bg, "csv", "url", "zip")
		gomega.Expect(errors.Is(err, pipeline.ErrBatchRunning)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(ws.Reset(), pipeline.ErrBatchRunning)).To(gomega.BeTrue())

		ws.Stop()
		host.Release()
		sum, err := batch.Wait(bg)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Processed).To(gomega.Equal(1))
		gomega.Expect(sum.Stopped).To(gomega.BeTrue())
		gomega.Expect(ws.LastBatch()).To(gomega.BeIdenticalTo(batch))

		gomega.Expect(ws.Reset()).To(gomega.Succeed())
		stats, _ := ws.Stats("csv")
		gomega.Expect(stats.Total).To(gomega.BeZero())
	})

	ginkgo.It("keeps the rows of a running batch from being replaced", func() {
		_, err := ws.LoadCSV(bg, writeCSV("url", host.URL+"/slow/a.png"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		started := make(chan struct{})
		var once sync.Once
		off := bus.On(events.BatchStart, func(events.Event) { once.Do(func() { close(started) }) })
		defer off()

		batch, err := ws.StartBatch(bg, "csv", "url", "zip")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Eventually(started).Should(gomega.BeClosed())

		_, err = ws.LoadCSV(bg, writeCSV("url,name", "https://other/x.png,unrelated"))
		gomega.Expect(errors.Is(err, pipeline.ErrBatchRunning)).To(gomega.BeTrue())
		_, err = ws.LoadFolder(bg, ginkgo.GinkgoT().TempDir())
		gomega.Expect(errors.Is(err, pipeline.ErrBatchRunning)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(ws.ClearAll(), pipeline.ErrBatchRunning)).To(gomega.BeTrue())

		host.Release()
		sum, err := batch.Wait(bg)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sum.Succeeded).To(gomega.Equal(1))

		src, _ := ws.GetSource("csv")
		row := src.Rows()[0]
		gomega.Expect(row.String("url")).To(gomega.Equal(host.URL + "/slow/a.png"))
		gomega.Expect(row.String(dataset.FieldFilename)).To(gomega.Equal("a.png"))

		_, err = ws.LoadCSV(bg, writeCSV("url,name", "https://other/x.png,unrelated"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("uploads into a bucket", func() {
		store := &fakeStore{}
		ws = New(Options{Bus: bus, Saver: saver, Store: store})
		ws.cfg.Bucket.Bucket = "media"
		ws.cfg.Bucket.Prefix = "run"

		_, err := ws.LoadCSV(bg, writeCSV("url", host.URL+"/img/a.png"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		_, err = ws.RunBatch(bg, "csv", "url", "bucket")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ws.Export(bg, "csv", "bucket")).To(gomega.Succeed())
		gomega.Expect(store.keys()).To(gomega.Equal([]string{"media/run/images/a.png", "media/run/images.csv"}))
	})
})

type fakeStore struct {
	mu   sync.Mutex
	puts []string
}

func (f *fakeStore) EnsureBucket(context.Context, string) error { return nil }

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, strings.Join([]string{bucket, key}, "/"))
	return nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}
