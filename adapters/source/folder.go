package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"imgnet/internal/dataset"
	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
	"imgnet/internal/thumbnail"
)

// KindFolder is the registry kind of the local-file source.
const KindFolder = "folder"

// FieldFile is the column holding each row's FileHandle.
const FieldFile = "fileobject"

// maxLocalImage caps how much of a local file is read for a preview.
const maxLocalImage = 64 << 20

// Folder is the "folder" source: one row per local image file. Fetching only
// produces a preview; the file itself never leaves the machine, so results
// carry no bytes and no new filename.
type Folder struct {
	bus    events.Bus
	table  *dataset.Table
	thumbs thumbnail.Maker
	size   int
	logger *slog.Logger
}

// NewFolder returns an empty folder source. A nil maker uses thumbnail.JPEG
// and a non-positive size uses the default preview size.
func NewFolder(bus events.Bus, thumbs thumbnail.Maker, size int) *Folder {
	if bus == nil {
		bus = events.Discard{}
	}
	if thumbs == nil {
		thumbs = thumbnail.JPEG{}
	}
	if size <= 0 {
		size = thumbnail.DefaultMaxDimension
	}
	return &Folder{
		bus:    bus,
		table:  dataset.NewTable(),
		thumbs: thumbs,
		size:   size,
		logger: logging.New("source.folder"),
	}
}

func (f *Folder) Kind() string         { return KindFolder }
func (f *Folder) Rows() []*dataset.Row { return f.table.Rows() }
func (f *Folder) Headers() []string    { return f.table.Headers() }

// Load replaces the rows with one row per image file. Files whose type is not
// an image type are skipped. inm_filename holds the file name and the handle
// itself is stored under fileobject.
func (f *Folder) Load(ctx context.Context, files []FileHandle) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	headers := append(dataset.ReservedHeaders(), FieldFile)
	rows := make([]*dataset.Row, 0, len(files))
	skipped := 0
	for _, fh := range files {
		if fh == nil || !IsImage(fh) {
			skipped++
			continue
		}
		row := dataset.NewRow()
		row.Set(dataset.FieldStatus, "")
		row.Set(dataset.FieldThumbnail, "")
		row.Set(dataset.FieldFilename, fh.Name())
		row.Set(FieldFile, fh)
		rows = append(rows, row)
	}
	f.table.Replace(headers, rows)
	f.logger.Info("loaded files", "rows", len(rows), "skipped", skipped)
	return f.table.Headers(), nil
}

// Fetch reads the file behind the task's handle and returns its preview.
func (f *Folder) Fetch(ctx context.Context, task pipeline.NodeTask) (pipeline.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Artifact{}, err
	}
	fh, ok := task.Seed.(FileHandle)
	if !ok {
		return pipeline.Artifact{}, fmt.Errorf("seed of row %d is %T, not a file", task.Index+1, task.Seed)
	}

	rc, err := fh.Open()
	if err != nil {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: fh.Name(), Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxLocalImage+1))
	if err != nil {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: fh.Name(), Err: err}
	}
	if len(data) > maxLocalImage {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: fh.Name(), Err: fmt.Errorf("file exceeds %d bytes", maxLocalImage)}
	}

	thumb, err := f.thumbs.MakeThumbnail(data, f.size)
	if err != nil {
		return pipeline.Artifact{}, &pipeline.DecodeError{Seed: fh.Name(), Err: err}
	}
	return pipeline.Artifact{Thumbnail: thumb}, nil
}

// Update writes the status and, on success, the preview. The filename is the
// file's own and is never touched.
func (f *Folder) Update(res pipeline.NodeResult) error {
	status := pipeline.RowStatus(res)
	fields := map[string]string{dataset.FieldStatus: status}
	if res.Status == pipeline.StatusSuccess && res.Thumbnail != "" {
		fields[dataset.FieldThumbnail] = res.Thumbnail
	}
	if res.Status == pipeline.StatusFail {
		fields[dataset.FieldThumbnail] = ""
	}
	if !f.table.Update(res.Index, fields) {
		return &pipeline.IndexError{Index: res.Index, Len: f.table.Len()}
	}
	f.bus.Emit(events.RowUpdated, pipeline.RowEvent{Source: KindFolder, Index: res.Index, Status: status})
	return nil
}

// Clear drops all rows.
func (f *Folder) Clear() { f.table.Reset() }
