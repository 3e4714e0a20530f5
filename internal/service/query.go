package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/Downsort/internal/adapter"
	"github.com/Ning0612/Downsort/internal/adapter/local"
	"github.com/Ning0612/Downsort/internal/config"
	"github.com/Ning0612/Downsort/internal/core/dupes"
	"github.com/Ning0612/Downsort/internal/core/enumerate"
	"github.com/Ning0612/Downsort/internal/core/fingerprint"
	"github.com/Ning0612/Downsort/internal/core/grouping"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/logger"
	"github.com/Ning0612/Downsort/internal/progress"
)

// Operation names, as recorded in history
const (
	OpListAll         = "list_all"
	OpListByExtension = "list_by_extension"
	OpListByDate      = "list_by_date"
	OpFindDuplicates  = "find_duplicates"
)

// Recorder receives one record per query
type Recorder interface {
	Record(rec history.Record) error
}

// Request carries per-call overrides. The zero value uses the configuration.
type Request struct {
	// Root overrides the configured scan root
	Root string

	// DateMode overrides the configured date bucketing mode
	DateMode grouping.DateMode
}

// FilesResult is the answer to ListAll
type FilesResult struct {
	Root      string                  `json:"root" yaml:"root"`
	ScannedAt time.Time               `json:"scanned_at" yaml:"scanned_at"`
	Files     []domain.FileDescriptor `json:"files" yaml:"files"`
	Warnings  []domain.ScanWarning    `json:"warnings" yaml:"warnings"`
}

// GroupsResult is the answer to ListByExtension and ListByDate
type GroupsResult struct {
	Root      string               `json:"root" yaml:"root"`
	ScannedAt time.Time            `json:"scanned_at" yaml:"scanned_at"`
	Groups    []domain.FileGroup   `json:"groups" yaml:"groups"`
	Warnings  []domain.ScanWarning `json:"warnings" yaml:"warnings"`
}

// DuplicatesResult is the answer to FindDuplicates
type DuplicatesResult struct {
	Root             string                  `json:"root" yaml:"root"`
	ScannedAt        time.Time               `json:"scanned_at" yaml:"scanned_at"`
	Groups           []domain.DuplicateGroup `json:"groups" yaml:"groups"`
	ReclaimableBytes int64                   `json:"reclaimable_bytes" yaml:"reclaimable_bytes"`
	Stats            fingerprint.Stats       `json:"stats" yaml:"stats"`
	Warnings         []domain.ScanWarning    `json:"warnings" yaml:"warnings"`
}

// QueryService is the read-only query surface over a directory.
// Every call performs a fresh scan; nothing is retained between calls,
// so concurrent calls are safe.
type QueryService struct {
	config   *config.Config
	fs       afero.Fs
	recorder Recorder
	reporter progress.Reporter
	now      func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(cfg *config.Config) (*QueryService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &QueryService{
		config: cfg,
		fs:     afero.NewOsFs(),
		now:    time.Now,
	}, nil
}

// SetFs replaces the filesystem scans read from
func (s *QueryService) SetFs(fs afero.Fs) {
	s.fs = fs
}

// SetRecorder sets where query history is appended
func (s *QueryService) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetProgressReporter sets the progress reporter for content hashing
func (s *QueryService) SetProgressReporter(reporter progress.Reporter) {
	s.reporter = reporter
}

// SetClock sets the time source used for date bucketing
func (s *QueryService) SetClock(now func() time.Time) {
	s.now = now
}

// ListAll returns every file under the root, ordered by name then path
func (s *QueryService) ListAll(ctx context.Context, req Request) (*FilesResult, error) {
	run := s.begin(OpListAll, req)

	snap, err := s.scan(ctx, run.root)
	if err != nil {
		return nil, run.fail(err)
	}

	files := snap.Files
	grouping.SortFiles(files)

	run.finish(len(files), 0, snap.Warnings)
	return &FilesResult{
		Root:      run.root,
		ScannedAt: run.start,
		Files:     orEmpty(files),
		Warnings:  orEmpty(snap.Warnings),
	}, nil
}

// ListByExtension returns files grouped by lowercase extension
func (s *QueryService) ListByExtension(ctx context.Context, req Request) (*GroupsResult, error) {
	run := s.begin(OpListByExtension, req)

	snap, err := s.scan(ctx, run.root)
	if err != nil {
		return nil, run.fail(err)
	}

	groups := grouping.ByExtension(snap.Files)

	run.finish(len(snap.Files), len(groups), snap.Warnings)
	return &GroupsResult{
		Root:      run.root,
		ScannedAt: run.start,
		Groups:    orEmpty(groups),
		Warnings:  orEmpty(snap.Warnings),
	}, nil
}

// ListByDate returns files grouped by modified date, newest bucket first
func (s *QueryService) ListByDate(ctx context.Context, req Request) (*GroupsResult, error) {
	run := s.begin(OpListByDate, req)

	mode := req.DateMode
	if mode == "" {
		mode = grouping.DateMode(s.config.Grouping.DateMode)
	}
	if !mode.IsValid() {
		return nil, run.fail(fmt.Errorf("%w: date mode %q", domain.ErrConfigInvalid, mode))
	}

	snap, err := s.scan(ctx, run.root)
	if err != nil {
		return nil, run.fail(err)
	}

	groups, err := grouping.ByDate(snap.Files, run.start, mode)
	if err != nil {
		return nil, run.fail(err)
	}

	run.finish(len(snap.Files), len(groups), snap.Warnings)
	return &GroupsResult{
		Root:      run.root,
		ScannedAt: run.start,
		Groups:    orEmpty(groups),
		Warnings:  orEmpty(snap.Warnings),
	}, nil
}

// FindDuplicates returns duplicate clusters, largest first
func (s *QueryService) FindDuplicates(ctx context.Context, req Request) (*DuplicatesResult, error) {
	run := s.begin(OpFindDuplicates, req)

	src, err := s.source(run.root)
	if err != nil {
		return nil, run.fail(err)
	}

	snap, err := enumerate.Enumerate(ctx, src, s.config.EnumerateOptions())
	if err != nil {
		return nil, run.fail(err)
	}

	engine, err := fingerprint.NewEngine(src, s.config.FingerprintOptions())
	if err != nil {
		return nil, run.fail(err)
	}
	if s.reporter != nil {
		engine.SetProgressReporter(s.reporter)
	}

	res, err := dupes.NewClassifier(engine).Classify(ctx, snap.Files)
	if err != nil {
		return nil, run.fail(err)
	}

	// An abandoned request never surfaces a partial classification
	if err := ctx.Err(); err != nil {
		return nil, run.fail(err)
	}

	warnings := append(orEmpty(snap.Warnings), res.Warnings...)

	run.finish(len(snap.Files), len(res.Groups), warnings)
	return &DuplicatesResult{
		Root:             run.root,
		ScannedAt:        run.start,
		Groups:           orEmpty(res.Groups),
		ReclaimableBytes: res.ReclaimableBytes(),
		Stats:            res.Stats,
		Warnings:         warnings,
	}, nil
}

// source opens the directory a request reads from
func (s *QueryService) source(root string) (adapter.Source, error) {
	src, err := local.NewWithFs(s.fs, root)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", root, err)
	}
	return src, nil
}

func (s *QueryService) scan(ctx context.Context, root string) (*enumerate.Result, error) {
	src, err := s.source(root)
	if err != nil {
		return nil, err
	}
	return enumerate.Enumerate(ctx, src, s.config.EnumerateOptions())
}

// run tracks one query for logging and history
type run struct {
	svc   *QueryService
	op    string
	root  string
	start time.Time
}

func (s *QueryService) begin(op string, req Request) *run {
	root := req.Root
	if root == "" {
		root = s.config.Scan.Root
	}
	root = config.ExpandPath(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &run{svc: s, op: op, root: root, start: s.now()}
}

func (r *run) finish(files, groups int, warnings []domain.ScanWarning) {
	status := history.StatusSuccess
	if len(warnings) > 0 {
		status = history.StatusPartial
	}

	logger.Get().Info("query completed",
		"op", r.op,
		"root", r.root,
		"files", files,
		"groups", groups,
		"warnings", len(warnings),
		"duration", r.svc.now().Sub(r.start),
	)

	r.record(history.Record{
		Files:    files,
		Groups:   groups,
		Warnings: len(warnings),
		Status:   status,
	})
}

func (r *run) fail(err error) error {
	logger.Get().Error("query failed", "op", r.op, "root", r.root, "error", err)
	r.record(history.Record{Status: history.StatusFailed, Error: err.Error()})
	return err
}

func (r *run) record(rec history.Record) {
	if r.svc.recorder == nil {
		return
	}

	rec.Operation = r.op
	rec.Root = r.root
	rec.StartTime = r.start
	rec.EndTime = r.svc.now()

	// History is an audit trail; a write failure never fails the query
	if err := r.svc.recorder.Record(rec); err != nil {
		logger.Get().Warn("failed to record history", "op", r.op, "error", err)
	}
}

// orEmpty keeps empty results as [] rather than null on the wire
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
