package pipeline

import (
	"context"
	"errors"
	"sync"

	"imgnet/internal/dataset"
)

// memSource is a Source over an in-memory table whose fetch behaviour is
// scripted per seed.
type memSource struct {
	table   *dataset.Table
	used    FilenameSet
	fetches []string
	fail    map[string]error
	onFetch func(task NodeTask)
	updErr  error
}

func newMemSource(column string, seeds ...string) *memSource {
	rows := make([]*dataset.Row, len(seeds))
	for i, s := range seeds {
		rows[i] = dataset.RowFrom([]string{column}, []string{s})
	}
	t := dataset.NewTable()
	t.Replace(append(dataset.ReservedHeaders(), column), rows)
	return &memSource{table: t, used: FilenameSet{}, fail: map[string]error{}}
}

func (s *memSource) Kind() string         { return "mem" }
func (s *memSource) Rows() []*dataset.Row { return s.table.Rows() }
func (s *memSource) Headers() []string    { return s.table.Headers() }
func (s *memSource) Clear()               { s.table.Reset() }

func (s *memSource) status(i int) string {
	r, _ := s.table.Row(i)
	return r.Status()
}

func (s *memSource) filename(i int) string {
	r, _ := s.table.Row(i)
	return r.String(dataset.FieldFilename)
}

func (s *memSource) Fetch(ctx context.Context, task NodeTask) (Artifact, error) {
	seed := SeedString(task.Seed)
	s.fetches = append(s.fetches, seed)
	if s.onFetch != nil {
		s.onFetch(task)
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if err, ok := s.fail[seed]; ok {
		return Artifact{}, err
	}
	name := UniqueFilename(seed, task.Index, s.used, "")
	s.used.Add(name)
	return Artifact{Bytes: []byte(seed), Filename: name, Thumbnail: "data:image/jpeg;base64,AA=="}, nil
}

func (s *memSource) Update(res NodeResult) error {
	if s.updErr != nil {
		return s.updErr
	}
	fields := map[string]string{dataset.FieldStatus: RowStatus(res)}
	if res.Filename != "" {
		fields[dataset.FieldFilename] = res.Filename
	}
	if res.Thumbnail != "" {
		fields[dataset.FieldThumbnail] = res.Thumbnail
	}
	if !s.table.Update(res.Index, fields) {
		return &IndexError{Index: res.Index, Len: s.table.Len()}
	}
	return nil
}

// memTarget records what it was given.
type memTarget struct {
	mu      sync.Mutex
	inits   int
	added   []string
	addErr  map[string]error
	initErr error
}

func (t *memTarget) Kind() string { return "memtarget" }

func (t *memTarget) Init(context.Context) error {
	t.inits++
	t.added = nil
	return t.initErr
}

func (t *memTarget) Add(_ context.Context, res NodeResult) error {
	if !res.HasArtifact() {
		return nil
	}
	if err, ok := t.addErr[res.Filename]; ok {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.added = append(t.added, res.Filename)
	return nil
}

func (t *memTarget) Export(context.Context, RowSource) error {
	if t.inits == 0 {
		return &ExportError{Target: t.Kind(), Op: "export", Err: errors.New("not initialized")}
	}
	return nil
}

func (t *memTarget) Clear() { t.added = nil }
