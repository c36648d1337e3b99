package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/domain"
)

// ── Triggers (cron + file_watch) ──────────────────────────

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...any) { c.l.Debugw(msg, keysAndValues...) }
func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// StartTriggers tears down the current schedule and watchers and rebuilds
// them from the dataset configuration. Triggered runs use ctx.
func (s *ReportService) StartTriggers(ctx context.Context) error {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	s.stopTriggersLocked()

	log := s.logger.Named("triggers")

	// ── Cron schedules ──
	scheduled := 0
	c := cron.New(cron.WithLogger(cronLogger{log.Sugar()}), cron.WithChain(cron.Recover(cronLogger{log.Sugar()})))
	for _, ds := range s.cfg.Datasets {
		if ds.Schedule == "" {
			continue
		}
		name := ds.Name
		if _, err := c.AddFunc(ds.Schedule, func() {
			log.Info("scheduled run", zap.String("dataset", name))
			if _, err := s.Run(ctx, name, domain.TriggerSchedule); err != nil {
				log.Warn("scheduled run failed", zap.String("dataset", name), zap.Error(err))
			}
		}); err != nil {
			log.Error("invalid schedule", zap.String("dataset", name), zap.String("expr", ds.Schedule), zap.Error(err))
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		log.Info("cron started", zap.Int("datasets", scheduled))
	}

	// ── File watchers ──
	pathToDatasets := make(map[string][]string)
	for _, ds := range s.cfg.Datasets {
		for _, p := range ds.WatchPaths() {
			abs, err := filepath.Abs(p)
			if err != nil {
				log.Warn("bad watch path", zap.String("path", p), zap.Error(err))
				continue
			}
			pathToDatasets[abs] = append(pathToDatasets[abs], ds.Name)
		}
	}
	if len(pathToDatasets) == 0 {
		s.emitter.Emit(ctx, EventTriggersSet, map[string]int{"scheduled": scheduled, "watched": 0})
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	watchedDirs := make(map[string]bool)
	for abs := range pathToDatasets {
		dir := filepath.Dir(abs)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Warn("failed to watch dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go s.watchLoop(watchCtx, ctx, watcher, pathToDatasets, s.watchDone)

	log.Info("watching files", zap.Int("files", len(pathToDatasets)))
	s.emitter.Emit(ctx, EventTriggersSet, map[string]int{"scheduled": scheduled, "watched": len(pathToDatasets)})
	return nil
}

// watchLoop debounces write and create events per dataset and runs the
// dataset once the file has been quiet for the debounce window.
func (s *ReportService) watchLoop(watchCtx, runCtx context.Context, watcher *fsnotify.Watcher, pathToDatasets map[string][]string, done chan struct{}) {
	defer close(done)
	log := s.logger.Named("watcher")
	debounce := s.cfg.WatchDebounce()
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-watchCtx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			for _, name := range pathToDatasets[abs] {
				if t, exists := timers[name]; exists {
					t.Stop()
				}
				timers[name] = time.AfterFunc(debounce, func() {
					if watchCtx.Err() != nil {
						return
					}
					log.Info("file changed", zap.String("path", abs), zap.String("dataset", name))
					if _, err := s.Run(runCtx, name, domain.TriggerFileWatch); err != nil {
						log.Warn("triggered run failed", zap.String("dataset", name), zap.Error(err))
					}
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

// Stop tears down the schedule and all watchers. Runs already in progress
// continue; use WaitRunning to wait for them.
func (s *ReportService) Stop() {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	s.stopTriggersLocked()
}

func (s *ReportService) stopTriggersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.watchDone != nil {
		<-s.watchDone
		s.watchDone = nil
	}
	if s.cronSched != nil {
		<-s.cronSched.Stop().Done()
		s.cronSched = nil
	}
}
