package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/chart"
	"github.com/smpawlowski/covid19/internal/config"
	"github.com/smpawlowski/covid19/internal/domain"
	"github.com/smpawlowski/covid19/internal/etl"
	_ "github.com/smpawlowski/covid19/internal/etl/sources"
	"github.com/smpawlowski/covid19/internal/metrics"
	"github.com/smpawlowski/covid19/internal/report"
	"github.com/smpawlowski/covid19/internal/series"
)

// ErrAlreadyRunning is returned when a run of the dataset is in progress.
var ErrAlreadyRunning = errors.New("dataset is already running")

// ─────────────────────────────────────────────────────────────
// Report Service: builds and publishes datasets
// ─────────────────────────────────────────────────────────────

// ReportService runs datasets end to end: extract, build, render, publish.
// It also owns the cron schedule and the file watchers that trigger runs.
type ReportService struct {
	cfg         *config.Config
	engine      *etl.Engine
	outputs     *Outputs
	runs        domain.RunLogStore
	emitter     EventEmitter
	recorder    *metrics.Recorder
	logger      *zap.Logger
	now         func() time.Time
	runningJobs runningGuard

	mu      sync.Mutex
	reports map[string]*report.Report

	// watcher / cron lifecycle
	triggerMu   sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// Options wires optional collaborators. Nil fields get no-op defaults,
// except Outputs: without it runs build but publish nothing.
type Options struct {
	Outputs *Outputs
	Runs    domain.RunLogStore
	Emitter EventEmitter
	Metrics *metrics.Recorder
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewReportService creates a ReportService ready for use.
func NewReportService(cfg *config.Config, opts Options) *ReportService {
	s := &ReportService{
		cfg:      cfg,
		outputs:  opts.Outputs,
		runs:     opts.Runs,
		emitter:  opts.Emitter,
		recorder: opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		reports:  make(map[string]*report.Report),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.runs == nil {
		s.runs = NewMemoryRunLogStore()
	}
	if s.emitter == nil {
		s.emitter = LogEmitter{}
	}
	if s.outputs == nil {
		s.outputs = &Outputs{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.engine = &etl.Engine{Logger: s.logger.Named("etl")}
	return s
}

// Datasets returns the configured datasets.
func (s *ReportService) Datasets() []config.Dataset {
	return s.cfg.Datasets
}

func (s *ReportService) dataset(name string) (*config.Dataset, error) {
	ds, ok := s.cfg.Dataset(name)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return ds, nil
}

// ── Build ──────────────────────────────────────────────────

// Build extracts and builds a dataset without publishing it. The result
// replaces the cached report of the dataset. rowsRead counts source rows.
func (s *ReportService) Build(ctx context.Context, name string) (r *report.Report, rowsRead int, err error) {
	ds, err := s.dataset(name)
	if err != nil {
		return nil, 0, err
	}
	opts := ds.Options()
	opts.Logger = s.logger.With(zap.String("dataset", ds.Name))

	var read sync.Mutex
	extract := func(ctx context.Context, job *etl.Job) (*etl.Batch, error) {
		b, err := s.engine.Extract(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", job.Name, err)
		}
		read.Lock()
		rowsRead += b.RowsRead
		read.Unlock()
		return b, nil
	}

	switch ds.Kind {
	case config.KindGlobal:
		load := func(ctx context.Context, metric string) (series.WideTable, error) {
			job, ok := ds.Metrics[metric]
			if !ok {
				return series.WideTable{}, fmt.Errorf("no %s source configured", metric)
			}
			b, err := extract(ctx, &job)
			if err != nil {
				return series.WideTable{}, err
			}
			return report.DecodeWide(b)
		}
		r, err = report.BuildGlobal(ctx, load, opts)

	case config.KindCantonal:
		var b *etl.Batch
		if b, err = extract(ctx, ds.Source); err != nil {
			return nil, rowsRead, err
		}
		var t series.Table
		if t, err = report.DecodeLong(b, ds.Columns); err != nil {
			return nil, rowsRead, err
		}
		r, err = report.BuildCantonal(t, opts)

	default:
		err = fmt.Errorf("unknown kind %q", ds.Kind)
	}
	if err != nil {
		return nil, rowsRead, err
	}

	s.mu.Lock()
	s.reports[ds.Name] = r
	s.mu.Unlock()
	return r, rowsRead, nil
}

// Report returns the last built report of a dataset, building it when
// there is none yet.
func (s *ReportService) Report(ctx context.Context, name string) (*report.Report, error) {
	s.mu.Lock()
	r, ok := s.reports[name]
	s.mu.Unlock()
	if ok {
		return r, nil
	}
	r, _, err := s.Build(ctx, name)
	return r, err
}

// ── Run ────────────────────────────────────────────────────

// RunResult summarizes one published run.
type RunResult struct {
	Log       domain.RunLog  `json:"log"`
	PageKey   string         `json:"pageKey,omitempty"`
	Published map[string]int `json:"published"` // rows per output table
}

// Run builds a dataset and publishes its page and tables. Nothing is
// published unless the build succeeds. A concurrent run of the same dataset
// is rejected with ErrAlreadyRunning.
func (s *ReportService) Run(ctx context.Context, name string, trigger domain.RunTrigger) (*RunResult, error) {
	ds, err := s.dataset(name)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("dataset", ds.Name), zap.String("trigger", string(trigger)))

	if !s.runningJobs.TryLock(ds.Name) {
		s.observe(ds.Name, domain.RunSkipped, 0)
		s.emitter.Emit(ctx, EventRunSkipped, ds.Name)
		log.Info("run skipped, dataset already running")
		return nil, fmt.Errorf("%s: %w", ds.Name, ErrAlreadyRunning)
	}
	defer s.runningJobs.Unlock(ds.Name)

	runLog := &domain.RunLog{
		Dataset:   ds.Name,
		Trigger:   trigger,
		StartedAt: s.now(),
		Status:    domain.RunRunning,
	}
	if err := s.runs.CreateRunLog(runLog); err != nil {
		log.Warn("failed to record run start", zap.Error(err))
	}
	s.emitter.Emit(ctx, EventRunStarted, map[string]string{"dataset": ds.Name, "runId": runLog.ID})

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout())
	defer cancel()

	result := &RunResult{Published: make(map[string]int)}
	runErr := s.runAndPublish(runCtx, ds, runLog, result)

	runLog.FinishedAt = s.now()
	runLog.Status = domain.RunSuccess
	if runErr != nil {
		runLog.Status = domain.RunError
		runLog.Error = runErr.Error()
	}
	if err := s.runs.UpdateRunLog(runLog); err != nil {
		log.Warn("failed to record run end", zap.Error(err))
	}
	result.Log = *runLog
	s.observe(ds.Name, runLog.Status, runLog.Duration())

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr), zap.Duration("took", runLog.Duration()))
		s.emitter.Emit(ctx, EventRunFailed, map[string]string{"dataset": ds.Name, "error": runErr.Error()})
		return result, runErr
	}
	log.Info("run published",
		zap.Int("rows_read", runLog.RowsRead),
		zap.Int("rows_published", runLog.RowsPublished),
		zap.Duration("took", runLog.Duration()),
	)
	s.emitter.Emit(ctx, EventPublished, map[string]any{"dataset": ds.Name, "page": result.PageKey, "tables": result.Published})
	return result, nil
}

func (s *ReportService) runAndPublish(ctx context.Context, ds *config.Dataset, runLog *domain.RunLog, result *RunResult) error {
	r, rowsRead, err := s.Build(ctx, ds.Name)
	runLog.RowsRead = rowsRead
	if err != nil {
		return err
	}

	page, err := r.Page(ds.Page, s.now())
	if err != nil {
		return fmt.Errorf("layout page: %w", err)
	}
	var html bytes.Buffer
	if err := chart.RenderHTML(&html, page); err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	var errs []error
	for _, nb := range r.Batches() {
		target := etl.Target{Dataset: ds.Name, Table: nb.Table}
		for _, out := range s.outputs.Tables {
			n, err := out.Dest.Write(ctx, target, nb.Batch.Schema, nb.Batch.Records, out.Mode)
			if err != nil {
				errs = append(errs, fmt.Errorf("publish %s/%s: %w", nb.Table, out.Dest.Name(), err))
				continue
			}
			result.Published[out.Dest.Name()+":"+nb.Table] = n
			runLog.RowsPublished += n
			if s.recorder != nil {
				s.recorder.SetRowsPublished(ds.Name, nb.Table, n)
			}
		}
	}
	if s.outputs.Pages != nil {
		key, err := s.outputs.Pages.WritePage(ctx, ds.Name, html.Bytes())
		if err != nil {
			errs = append(errs, fmt.Errorf("publish page: %w", err))
		}
		result.PageKey = key
	}
	return errors.Join(errs...)
}

func (s *ReportService) observe(dataset string, status domain.RunStatus, took time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveRun(dataset, string(status), took)
	}
}

// ListRunLogs returns the last 50 runs of a dataset, newest first.
func (s *ReportService) ListRunLogs(name string) ([]domain.RunLog, error) {
	return s.runs.ListRunLogs(name, 50)
}

// IsRunning reports whether a dataset has a run in progress.
func (s *ReportService) IsRunning(name string) bool {
	return s.runningJobs.Running(name)
}

// WaitRunning blocks until all running datasets finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ReportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}
