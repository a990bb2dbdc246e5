package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"imgnet/internal/dataset"
	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
	"imgnet/internal/tabular"
	"imgnet/internal/thumbnail"
)

// KindRemote is the registry kind of the URL-fetching source.
const KindRemote = "csv"

// RemoteConfig tunes the HTTP side of the remote source.
type RemoteConfig struct {
	// Timeout bounds one request including the body (default 30s).
	Timeout time.Duration
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	// Burst is the limiter burst size (default 1).
	Burst int
	// UserAgent is sent with every request.
	UserAgent string
	// ThumbnailSize is the longest preview side in pixels.
	ThumbnailSize int
	// Extension is appended to derived filenames without one.
	Extension string
	// MaxBytes caps a response body (default DefaultMaxBytes).
	MaxBytes int64
	// Transport overrides the HTTP transport (tests, proxies).
	Transport http.RoundTripper
	// Thumbnails overrides the preview generator.
	Thumbnails thumbnail.Maker
}

// DefaultMaxBytes is the largest image body the remote source accepts.
const DefaultMaxBytes = 32 << 20

// DefaultRemoteConfig returns the defaults used when a field is zero.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Timeout:       30 * time.Second,
		Burst:         1,
		UserAgent:     "imgnet/1.0",
		ThumbnailSize: thumbnail.DefaultMaxDimension,
		Extension:     pipeline.DefaultExtension,
		MaxBytes:      DefaultMaxBytes,
	}
}

// Remote is the "csv" source: rows come from a tabular file and each seed is
// an image URL fetched with a single GET.
type Remote struct {
	bus     events.Bus
	table   *dataset.Table
	client  *http.Client
	limiter *rate.Limiter
	thumbs  thumbnail.Maker
	cfg     RemoteConfig
	logger  *slog.Logger

	mu   sync.Mutex
	used pipeline.FilenameSet
}

// NewRemote returns an empty remote source publishing row updates on bus.
func NewRemote(bus events.Bus, cfg RemoteConfig) *Remote {
	def := DefaultRemoteConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = def.ThumbnailSize
	}
	if cfg.Extension == "" {
		cfg.Extension = def.Extension
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Thumbnails == nil {
		cfg.Thumbnails = thumbnail.JPEG{}
	}
	if bus == nil {
		bus = events.Discard{}
	}

	r := &Remote{
		bus:    bus,
		table:  dataset.NewTable(),
		client: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		thumbs: cfg.Thumbnails,
		cfg:    cfg,
		logger: logging.New("source.csv"),
		used:   pipeline.FilenameSet{},
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return r
}

func (r *Remote) Kind() string         { return KindRemote }
func (r *Remote) Rows() []*dataset.Row { return r.table.Rows() }
func (r *Remote) Headers() []string    { return r.table.Headers() }

// Row returns a copy of the row at i.
func (r *Remote) Row(i int) (*dataset.Row, bool) {
	return r.table.Row(i)
}

// Load replaces the rows with the parsed contents of in. The reserved fields
// come first in the header list and start empty, unless the file already
// carries columns with those names (a previous export), in which case their
// values are kept.
func (r *Remote) Load(ctx context.Context, in io.Reader) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tb, err := tabular.Parse(in)
	if err != nil {
		perr := &pipeline.ParseError{Source: KindRemote, Err: err}
		var le *tabular.LineError
		if errors.As(err, &le) {
			perr.Line, perr.Err = le.Line, le.Err
		}
		return nil, perr
	}

	headers := dataset.ReservedHeaders()
	for _, h := range tb.Headers {
		if !dataset.IsReserved(h) {
			headers = append(headers, h)
		}
	}

	used := pipeline.FilenameSet{}
	rows := make([]*dataset.Row, len(tb.Records))
	for i, rec := range tb.Records {
		src := dataset.RowFrom(tb.Headers, rec)
		row := dataset.NewRow()
		for _, h := range headers {
			row.Set(h, src.String(h))
		}
		if name := row.String(dataset.FieldFilename); name != "" {
			used.Add(name)
		}
		rows[i] = row
	}

	r.mu.Lock()
	r.used = used
	r.mu.Unlock()
	r.table.Replace(headers, rows)

	r.logger.Info("loaded rows", "rows", len(rows), "columns", len(headers))
	return r.table.Headers(), nil
}

// Fetch performs one GET for the task's seed and returns the image bytes,
// a unique filename and a preview. Failures are typed per the item error
// taxonomy; a cancelled context is returned unwrapped.
func (r *Remote) Fetch(ctx context.Context, task pipeline.NodeTask) (pipeline.Artifact, error) {
	seed := strings.TrimSpace(pipeline.SeedString(task.Seed))

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return pipeline.Artifact{}, ctx.Err()
			}
			return pipeline.Artifact{}, &pipeline.NetworkError{Seed: seed, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seed, nil)
	if err != nil {
		return pipeline.Artifact{}, &pipeline.NetworkError{Seed: seed, Err: err}
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.Artifact{}, ctx.Err()
		}
		return pipeline.Artifact{}, &pipeline.NetworkError{Seed: seed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
		return pipeline.Artifact{}, pipeline.NewHTTPError(seed, resp.StatusCode, reason)
	}

	if resp.ContentLength > r.cfg.MaxBytes {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: seed, Err: r.tooLarge(resp.ContentLength)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.Artifact{}, ctx.Err()
		}
		return pipeline.Artifact{}, &pipeline.NetworkError{Seed: seed, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > r.cfg.MaxBytes {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: seed, Err: r.tooLarge(-1)}
	}

	thumb, err := r.thumbs.MakeThumbnail(body, r.cfg.ThumbnailSize)
	if err != nil {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: seed, Err: err}
	}

	r.mu.Lock()
	// A re-run replaces the row's previous artifact, so its name is free again.
	if old, ok := r.table.Value(task.Index, dataset.FieldFilename); ok {
		if s, _ := old.(string); s != "" {
			delete(r.used, s)
		}
	}
	name := pipeline.UniqueFilename(seed, task.Index, r.used, r.cfg.Extension)
	r.used.Add(name)
	r.mu.Unlock()

	r.logger.Debug("fetched", "row", task.Index+1, "url", seed, "bytes", len(body), "filename", name)
	return pipeline.Artifact{Bytes: body, Filename: name, Thumbnail: thumb}, nil
}

func (r *Remote) tooLarge(n int64) error {
	if n < 0 {
		return fmt.Errorf("body exceeds %d bytes", r.cfg.MaxBytes)
	}
	return fmt.Errorf("body of %d bytes exceeds %d", n, r.cfg.MaxBytes)
}

// Update writes the outcome onto its row. A failed row loses any filename
// and preview from an earlier run so the table matches the bundle.
func (r *Remote) Update(res pipeline.NodeResult) error {
	status := pipeline.RowStatus(res)
	fields := map[string]string{dataset.FieldStatus: status}
	switch res.Status {
	case pipeline.StatusSuccess:
		if res.Filename != "" {
			fields[dataset.FieldFilename] = res.Filename
		}
		if res.Thumbnail != "" {
			fields[dataset.FieldThumbnail] = res.Thumbnail
		}
	case pipeline.StatusFail:
		fields[dataset.FieldFilename] = ""
		fields[dataset.FieldThumbnail] = ""
	}
	if !r.table.Update(res.Index, fields) {
		return &pipeline.IndexError{Index: res.Index, Len: r.table.Len()}
	}
	r.bus.Emit(events.RowUpdated, pipeline.RowEvent{Source: KindRemote, Index: res.Index, Status: status})
	return nil
}

// Clear drops all rows and the issued filenames.
func (r *Remote) Clear() {
	r.table.Reset()
	r.mu.Lock()
	r.used = pipeline.FilenameSet{}
	r.mu.Unlock()
}
