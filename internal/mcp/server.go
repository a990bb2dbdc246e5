// Package mcp exposes a workspace as MCP tools so an agent can load tables,
// run and stop batches, poll progress and export results.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
	"imgnet/internal/workspace"
)

// DefaultWaitTimeout bounds wait_batch when the caller gives no timeout.
var DefaultWaitTimeout = 30 * time.Second

// Server wraps the MCP SDK server around one workspace.
type Server struct {
	MCPServer *sdkmcp.Server
	Workspace *workspace.Workspace

	history *events.Recorder
}

// NewServer creates an MCP server for ws. Every event published on the
// workspace bus from now on is kept for get_events.
func NewServer(ws *workspace.Workspace, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		Workspace: ws,
		history:   events.Record(ws.Bus()),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "imgnet", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "load_csv",
		Description: "Load a CSV file of image URLs into the csv source. Replaces previously loaded rows.",
	}, s.handleLoadCSV)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "load_folder",
		Description: "Load every image file under a local directory into the folder source.",
	}, s.handleLoadFolder)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_batch",
		Description: "Start fetching every row of a source into a target in the background. Fails while a batch is running.",
	}, s.handleStartBatch)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "stop_batch",
		Description: "Ask the running batch to stop after the item in flight.",
	}, s.handleStopBatch)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "wait_batch",
		Description: "Block until the background batch finishes (or the timeout passes) and return its summary.",
	}, s.handleWaitBatch)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_stats",
		Description: "Count rows by outcome for a source and report the engine state.",
	}, s.handleGetStats)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_events",
		Description: "Read pipeline events (batch, progress, row, log, export). Returns all events, or events since a given index.",
	}, s.handleGetEvents)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "export",
		Description: "Export a source's rows through a target (zip bundle, csv table or bucket).",
	}, s.handleExport)
}

// --- Tool input/output types ---

type loadCSVInput struct {
	Path string `json:"path" jsonschema:"path of the CSV file to load"`
}

type loadFolderInput struct {
	Dir string `json:"dir" jsonschema:"directory to scan for image files"`
}

type loadOutput struct {
	Headers []string `json:"headers"`
	Rows    int      `json:"rows"`
}

type startBatchInput struct {
	Source string `json:"source,omitempty" jsonschema:"source kind (csv, folder); default csv"`
	Column string `json:"column" jsonschema:"column holding the seeds (URL column, or fileobject for folders)"`
	Target string `json:"target,omitempty" jsonschema:"target kind (zip, csv, bucket); default zip"`
}

type startBatchOutput struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
}

type stopBatchInput struct{}

type stopBatchOutput struct {
	State         string `json:"state"`
	StopRequested bool   `json:"stop_requested"`
}

type waitBatchInput struct {
	TimeoutMS int `json:"timeout_ms,omitempty" jsonschema:"max wait in milliseconds (0 = server default)"`
}

type waitBatchOutput struct {
	Done    bool             `json:"done"`
	Summary pipeline.Summary `json:"summary"`
	Error   string           `json:"error,omitempty"`
}

type getStatsInput struct {
	Source string `json:"source,omitempty" jsonschema:"source kind (csv, folder); default csv"`
}

type getStatsOutput struct {
	Stats pipeline.Stats      `json:"stats"`
	Batch pipeline.BatchState `json:"batch"`
}

type getEventsInput struct {
	Since int `json:"since,omitempty" jsonschema:"return events from this index onward (0-based)"`
}

type eventView struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Time    string `json:"time"`
	Payload any    `json:"payload,omitempty"`
}

type getEventsOutput struct {
	Events []eventView `json:"events"`
	Total  int         `json:"total"`
}

type exportInput struct {
	Source string `json:"source,omitempty" jsonschema:"source kind (csv, folder); default csv"`
	Target string `json:"target,omitempty" jsonschema:"target kind (zip, csv, bucket); default zip"`
}

type exportOutput struct {
	OK string `json:"ok"`
}

// --- Tool handlers ---

func (s *Server) handleLoadCSV(ctx context.Context, _ *sdkmcp.CallToolRequest, input loadCSVInput) (*sdkmcp.CallToolResult, loadOutput, error) {
	if input.Path == "" {
		return nil, loadOutput{}, errors.New("path is required")
	}
	headers, err := s.Workspace.LoadCSV(ctx, input.Path)
	if err != nil {
		return nil, loadOutput{}, fmt.Errorf("load_csv: %w", err)
	}
	return nil, s.loaded("csv", headers), nil
}

func (s *Server) handleLoadFolder(ctx context.Context, _ *sdkmcp.CallToolRequest, input loadFolderInput) (*sdkmcp.CallToolResult, loadOutput, error) {
	if input.Dir == "" {
		return nil, loadOutput{}, errors.New("dir is required")
	}
	headers, err := s.Workspace.LoadFolder(ctx, input.Dir)
	if err != nil {
		return nil, loadOutput{}, fmt.Errorf("load_folder: %w", err)
	}
	return nil, s.loaded("folder", headers), nil
}

func (s *Server) loaded(kind string, headers []string) loadOutput {
	out := loadOutput{Headers: headers}
	if st, err := s.Workspace.Stats(kind); err == nil {
		out.Rows = st.Total
	}
	return out
}

func (s *Server) handleStartBatch(ctx context.Context, _ *sdkmcp.CallToolRequest, input startBatchInput) (*sdkmcp.CallToolResult, startBatchOutput, error) {
	if input.Column == "" {
		return nil, startBatchOutput{}, errors.New("column is required")
	}
	src, tgt := orDefault(input.Source, "csv"), orDefault(input.Target, "zip")
	st, err := s.Workspace.Stats(src)
	if err != nil {
		return nil, startBatchOutput{}, err
	}
	if _, err := s.Workspace.StartBatch(ctx, src, input.Column, tgt); err != nil {
		return nil, startBatchOutput{}, fmt.Errorf("start_batch: %w", err)
	}
	logging.New("mcp").Info("batch started", "source", src, "target", tgt, "column", input.Column, "rows", st.Total)
	return nil, startBatchOutput{Status: "started", Total: st.Total}, nil
}

func (s *Server) handleStopBatch(_ context.Context, _ *sdkmcp.CallToolRequest, _ stopBatchInput) (*sdkmcp.CallToolResult, stopBatchOutput, error) {
	s.Workspace.Stop()
	snap := s.Workspace.Engine().Snapshot()
	return nil, stopBatchOutput{State: string(snap.State), StopRequested: snap.StopRequested}, nil
}

func (s *Server) handleWaitBatch(ctx context.Context, _ *sdkmcp.CallToolRequest, input waitBatchInput) (*sdkmcp.CallToolResult, waitBatchOutput, error) {
	b := s.Workspace.LastBatch()
	if b == nil {
		return nil, waitBatchOutput{}, errors.New("no batch started (call start_batch first)")
	}
	timeout := DefaultWaitTimeout
	if input.TimeoutMS > 0 {
		timeout = time.Duration(input.TimeoutMS) * time.Millisecond
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sum, err := b.Wait(wctx)
	if err != nil && errors.Is(err, wctx.Err()) {
		return nil, waitBatchOutput{}, nil
	}
	out := waitBatchOutput{Done: true, Summary: sum}
	if err != nil {
		out.Error = err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *sdkmcp.CallToolRequest, input getStatsInput) (*sdkmcp.CallToolResult, getStatsOutput, error) {
	st, err := s.Workspace.Stats(orDefault(input.Source, "csv"))
	if err != nil {
		return nil, getStatsOutput{}, err
	}
	return nil, getStatsOutput{Stats: st, Batch: s.Workspace.Engine().Snapshot()}, nil
}

func (s *Server) handleGetEvents(_ context.Context, _ *sdkmcp.CallToolRequest, input getEventsInput) (*sdkmcp.CallToolResult, getEventsOutput, error) {
	since := max(input.Since, 0)
	evs := s.history.Since(since)
	out := getEventsOutput{Events: make([]eventView, len(evs)), Total: s.history.Len()}
	for i, ev := range evs {
		out.Events[i] = eventView{
			Index:   since + i,
			Name:    ev.Name,
			Time:    ev.Time.UTC().Format(time.RFC3339Nano),
			Payload: ev.Payload,
		}
	}
	return nil, out, nil
}

func (s *Server) handleExport(ctx context.Context, _ *sdkmcp.CallToolRequest, input exportInput) (*sdkmcp.CallToolResult, exportOutput, error) {
	src, tgt := orDefault(input.Source, "csv"), orDefault(input.Target, "zip")
	if err := s.Workspace.Export(ctx, src, tgt); err != nil {
		return nil, exportOutput{}, fmt.Errorf("export: %w", err)
	}
	return nil, exportOutput{OK: "exported " + src + " via " + tgt}, nil
}

// Shutdown stops any running batch and detaches from the bus.
func (s *Server) Shutdown() {
	s.Workspace.Stop()
	s.history.Close()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
