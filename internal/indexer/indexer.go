package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kiwi/internal/database"
	"kiwi/internal/filesystem"
	"kiwi/internal/library"
	"kiwi/internal/logging"
	"kiwi/internal/memory"
	"kiwi/internal/metrics"
	"kiwi/internal/workers"
)

// ErrSyncInProgress is returned when a run is requested while one is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// Config controls the orchestrator.
type Config struct {
	LibraryDir string
	// Interval between scheduled syncs; 0 disables the schedule.
	Interval time.Duration
	// PollInterval between lightweight change checks; 0 disables polling.
	PollInterval time.Duration
	Workers      int
	ChunkSize    int
	BatchSize    int
	ProbeImages  bool
	Retry        filesystem.RetryConfig
}

// Indexer runs sync passes between the library and the store, one at a
// time, on demand or on a schedule.
type Indexer struct {
	store     Store
	cfg       Config
	extractor library.Extractor
	monitor   *memory.Monitor
	now       func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopChan chan struct{}

	runMu               sync.Mutex
	running             bool
	lastResult          *SyncResult
	lastSyncTime        time.Time
	initialSyncComplete bool
	initialSyncError    error
	startTime           time.Time

	progress   atomic.Value
	onProgress ProgressFunc
	onComplete func(SyncResult)

	// Last known library state for lightweight change polling
	stateMu       sync.RWMutex
	lastItemsMod  time.Time
	lastMTimesMod time.Time
}

// New creates an Indexer. Zero config values fall back to defaults.
func New(store Store, cfg Config) *Indexer {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers(cfg.ProbeImages)
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = workers.DefaultChunkSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry == (filesystem.RetryConfig{}) {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}

	var extractor library.Extractor = library.NewSidecarExtractor(cfg.Retry)
	if cfg.ProbeImages {
		extractor = library.NewImageProbe(extractor, cfg.Retry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		store:     store,
		cfg:       cfg,
		extractor: extractor,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		stopChan:  make(chan struct{}),
		startTime: time.Now(),
	}
	idx.progress.Store(Progress{Phase: StateIdle})
	return idx
}

// DefaultWorkers returns the detection concurrency for the host. Image
// probing adds decode work, so it sizes for mixed rather than I/O-bound work.
func DefaultWorkers(probeImages bool) int {
	if probeImages {
		return workers.ForMixed(32)
	}
	return workers.ForIO(32)
}

// SetMemoryMonitor makes every chunk of sync work wait while m reports
// critical memory usage.
func (idx *Indexer) SetMemoryMonitor(m *memory.Monitor) {
	idx.monitor = m
}

// SetProgressFunc registers a callback for progress updates.
func (idx *Indexer) SetProgressFunc(fn ProgressFunc) {
	idx.onProgress = fn
}

// SetOnSyncComplete registers a callback invoked after every run.
func (idx *Indexer) SetOnSyncComplete(fn func(SyncResult)) {
	idx.onComplete = fn
}

// Start runs an initial sync in the background and starts the scheduled and
// polling loops.
func (idx *Indexer) Start() error {
	if n, err := idx.store.GetItemCount(idx.ctx); err == nil && n > 0 {
		logging.Info("Existing index has %d items, serving while initial sync runs", n)
		idx.runMu.Lock()
		idx.initialSyncComplete = true
		idx.runMu.Unlock()
	}

	go func() {
		logging.Info("Starting initial sync in background...")
		res := idx.Run(idx.ctx)
		idx.runMu.Lock()
		idx.initialSyncComplete = true
		if res.Err != nil {
			idx.initialSyncError = res.Err
		}
		idx.runMu.Unlock()
	}()

	if idx.cfg.Interval > 0 {
		go idx.periodicSync()
	}
	if idx.cfg.PollInterval > 0 {
		go idx.pollForChanges()
	}

	return nil
}

// Stop cancels any running sync and stops the background loops.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		idx.cancel()
		close(idx.stopChan)
	})
}

// TriggerSync starts a sync in the background. It returns false when one is
// already running. The run slot is claimed before returning, so of two
// concurrent callers exactly one gets true.
func (idx *Indexer) TriggerSync() bool {
	if !idx.tryStart() {
		return false
	}
	go func() {
		res := idx.execute(idx.ctx, idx.now())
		if res.Err != nil {
			logging.Error("Manually triggered sync failed: %v", res.Err)
		}
	}()
	return true
}

func (idx *Indexer) periodicSync() {
	ticker := time.NewTicker(idx.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic sync triggered")
			idx.Run(idx.ctx)
		case <-idx.stopChan:
			return
		}
	}
}

// tryStart marks a run as active, returns false if one already is.
func (idx *Indexer) tryStart() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()

	if idx.running {
		return false
	}
	idx.running = true
	return true
}

func (idx *Indexer) finish(res *SyncResult) {
	idx.runMu.Lock()
	idx.running = false
	idx.lastResult = res
	if res.State == StateCompleted {
		idx.lastSyncTime = res.FinishedAt
	}
	idx.runMu.Unlock()

	idx.progress.Store(Progress{RunID: res.RunID, Phase: res.State, StartedAt: res.StartedAt})
}

// IsRunning reports whether a sync is in progress.
func (idx *Indexer) IsRunning() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	return idx.running
}

// IsReady reports whether the index can serve reads: the initial sync
// finished or a previous process left an index behind.
func (idx *Indexer) IsReady() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	return idx.initialSyncComplete
}

// LastResult returns the most recent finished run, or nil.
func (idx *Indexer) LastResult() *SyncResult {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	if idx.lastResult == nil {
		return nil
	}
	res := *idx.lastResult
	return &res
}

// LastSyncTime returns when the last successful sync finished.
func (idx *Indexer) LastSyncTime() time.Time {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()
	return idx.lastSyncTime
}

// GetProgress returns the current run's progress.
func (idx *Indexer) GetProgress() Progress {
	if p, ok := idx.progress.Load().(Progress); ok {
		return p
	}
	return Progress{}
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool      `json:"ready"`
	Syncing          bool      `json:"syncing"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
	LastSynced       time.Time `json:"lastSynced,omitempty"`
	InitialSyncError string    `json:"initialSyncError,omitempty"`
	LastState        State     `json:"lastState,omitempty"`
	LastSummary      string    `json:"lastSummary,omitempty"`
	Progress         *Progress `json:"progress,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	progress := idx.GetProgress()

	idx.runMu.Lock()
	defer idx.runMu.Unlock()

	status := HealthStatus{
		Ready:      idx.initialSyncComplete,
		Syncing:    idx.running,
		StartTime:  idx.startTime,
		Uptime:     time.Since(idx.startTime).Round(time.Second).String(),
		LastSynced: idx.lastSyncTime,
	}
	if idx.running {
		status.Progress = &progress
	}
	if idx.initialSyncError != nil {
		status.InitialSyncError = idx.initialSyncError.Error()
	}
	if idx.lastResult != nil {
		status.LastState = idx.lastResult.State
		status.LastSummary = idx.lastResult.Summary()
	}
	return status
}

func (idx *Indexer) publish(p Progress) {
	idx.progress.Store(p)
	if idx.onProgress != nil {
		idx.onProgress(p)
	}
}

// Run performs one sync pass and returns its result. Only one pass runs at
// a time; a concurrent call returns immediately with ErrSyncInProgress.
func (idx *Indexer) Run(ctx context.Context) SyncResult {
	start := idx.now()

	if !idx.tryStart() {
		logging.Info("Sync already in progress, skipping...")
		return SyncResult{
			State:     StateFailed,
			FailedIn:  StateIdle,
			StartedAt: start,
			Err:       ErrSyncInProgress,
			Fatal:     ErrSyncInProgress.Error(),
		}
	}
	return idx.execute(ctx, start)
}

// execute performs a pass on a run slot already claimed with tryStart and
// releases it when done.
func (idx *Indexer) execute(ctx context.Context, start time.Time) SyncResult {
	metrics.SyncIsRunning.Set(1)
	defer metrics.SyncIsRunning.Set(0)

	res := &SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}
	rc := newRunContext(res.RunID, start, idx.publish, idx.now)
	rc.Concurrency = idx.cfg.Workers
	rc.ChunkSize = idx.cfg.ChunkSize
	rc.BatchSize = idx.cfg.BatchSize

	logging.Info("Starting sync %s (workers=%d, chunk=%d, batch=%d)",
		res.RunID, rc.Concurrency, rc.ChunkSize, rc.BatchSize)

	sm := newStateMachine(res.RunID, idx.now)
	if err := idx.run(ctx, rc, sm, res); err != nil {
		res.FailedIn = sm.State()
		res.Err = err
		res.Fatal = err.Error()
		if advErr := sm.advance(StateFailed); advErr != nil {
			logging.Error("Sync %s: %v", res.RunID, advErr)
		}
	}

	res.State = sm.State()
	res.Phases = sm.History()
	res.FinishedAt = idx.now()
	res.Elapsed = res.FinishedAt.Sub(start)

	idx.recordMetrics(res)
	idx.finish(res)

	if res.State == StateFailed {
		logging.Error("Sync %s: %s", res.RunID, res.Summary())
	} else {
		logging.Info("Sync %s: %s", res.RunID, res.Summary())
		idx.updateLastKnownState()
	}

	if idx.onComplete != nil {
		idx.onComplete(*res)
	}
	return *res
}

// run executes the phases. A returned error is fatal for the run.
func (idx *Indexer) run(ctx context.Context, rc *RunContext, sm *stateMachine, res *SyncResult) error {
	// Validating
	if err := sm.advance(StateValidating); err != nil {
		return err
	}
	lib, err := library.Open(ctx, idx.cfg.LibraryDir, idx.cfg.Retry)
	if err != nil {
		return err
	}

	// Connecting
	if err := sm.advance(StateConnecting); err != nil {
		return err
	}
	if err := idx.store.Ping(ctx); err != nil {
		return err
	}
	cursor, err := idx.store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync cursor: %w", err)
	}
	rc.Cursor = cursor

	// Scanning
	if err := sm.advance(StateScanning); err != nil {
		return err
	}
	items, err := lib.Items(ctx)
	if err != nil {
		return err
	}
	mtimes, err := lib.LoadMTimeMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load mtime map: %w", err)
	}
	states, err := idx.store.ItemStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to read item states: %w", err)
	}
	indexed, err := idx.store.AllItemIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read indexed items: %w", err)
	}
	res.Scanned = len(items)

	onDisk := make(map[string]struct{}, len(items))
	for _, it := range items {
		onDisk[it.ID] = struct{}{}
	}
	var toDelete []string
	for _, id := range indexed {
		if _, ok := onDisk[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	logging.Info("Sync %s: %d items on disk, %d indexed, cursor %s",
		rc.ID, len(items), len(indexed), formatCursor(cursor))

	// Detecting
	if err := sm.advance(StateDetecting); err != nil {
		return err
	}
	collector := NewCollector(lib, idx.extractor)
	detections := idx.detect(ctx, rc, collector, items, states, mtimes)
	if err := ctx.Err(); err != nil {
		return err
	}

	classes := make(map[string]Class, len(detections))
	var pending []Detection
	for _, d := range detections {
		classes[d.Item.ID] = d.Class
		switch d.Class {
		case ClassNew, ClassModified:
			pending = append(pending, d)
		case ClassErrored:
			res.addError(ItemError{ID: d.Item.ID, Phase: StateDetecting, Err: d.Err})
			metrics.SyncItemErrors.WithLabelValues(string(StateDetecting)).Inc()
		}
	}

	if len(pending) > 0 || len(toDelete) > 0 {
		if err := idx.apply(ctx, rc, sm, res, collector, pending, toDelete, mtimes, classes); err != nil {
			return err
		}
	} else {
		logging.Info("Sync %s: no changes detected", rc.ID)
	}

	// Finalizing
	if err := sm.advance(StateFinalizing); err != nil {
		return err
	}
	count, err := NewApplier(idx.store, rc.BatchSize).Finalize(ctx, rc.StartedAt)
	if err != nil {
		return err
	}
	res.Cursor = rc.StartedAt
	res.ItemCount = count

	tally(res, classes)
	return sm.advance(StateCompleted)
}

// detect classifies every item with bounded concurrency.
func (idx *Indexer) detect(
	ctx context.Context,
	rc *RunContext,
	collector *Collector,
	items []library.Item,
	states map[string]database.ItemState,
	mtimes library.MTimeMap,
) []Detection {
	detections := make([]Detection, 0, len(items))
	processed := 0
	rc.Report(StateDetecting, 0, len(items))

	stats := workers.Run(ctx, items,
		idx.workerOptions(rc),
		func(ctx context.Context, it library.Item) (Detection, error) {
			p := Probe{Item: it, Cursor: rc.Cursor}
			if st, ok := states[it.ID]; ok {
				p.Prior = &st
			}
			if mt, ok := mtimes[it.ID]; ok {
				p.MTime = &mt
			}
			d := collector.Classify(ctx, p)
			return d, d.Err
		},
		func(results []workers.Result[Detection]) {
			for _, r := range results {
				d := r.Value
				if d.Class == "" {
					// fn never ran (canceled) or panicked
					d = Detection{Item: items[r.Index]}.failed(r.Err)
				}
				if d.Class == ClassUnchanged {
					d.Normalized = nil
				}
				detections = append(detections, d)
			}
			processed += len(results)
			rc.Report(StateDetecting, processed, len(items))
		})

	logging.Debug("Sync %s: detection finished (%d ok, %d failed, max in flight %d)",
		rc.ID, stats.Completed, stats.Failed, stats.MaxInFlight)
	return detections
}

// apply runs the delete, upsert and relate phases.
func (idx *Indexer) apply(
	ctx context.Context,
	rc *RunContext,
	sm *stateMachine,
	res *SyncResult,
	collector *Collector,
	pending []Detection,
	toDelete []string,
	mtimes library.MTimeMap,
	classes map[string]Class,
) error {
	applier := NewApplier(idx.store, rc.BatchSize)

	fail := func(e ItemError) {
		classes[e.ID] = ClassErrored
		res.addError(e)
		metrics.SyncItemErrors.WithLabelValues(string(e.Phase)).Inc()
	}

	// Deleting
	if err := sm.advance(StateDeleting); err != nil {
		return err
	}
	deleted, errs, err := applier.DeleteItems(ctx, rc, toDelete)
	for _, e := range errs {
		fail(e)
	}
	if err != nil {
		return err
	}
	res.DeletedIDs = deleted
	res.Deleted = len(deleted)

	// Upserting
	if err := sm.advance(StateUpserting); err != nil {
		return err
	}
	rows := idx.normalize(ctx, rc, collector, pending, mtimes, fail)
	if err := ctx.Err(); err != nil {
		return err
	}
	written, errs, err := applier.UpsertItems(ctx, rc, rows)
	for _, e := range errs {
		fail(e)
	}
	if err != nil {
		return err
	}

	// Relating
	if err := sm.advance(StateRelating); err != nil {
		return err
	}
	errs, err = applier.RebuildRelationships(ctx, rc, written)
	for _, e := range errs {
		fail(e)
	}
	return err
}

// normalize produces the rows to write for new and modified items, reusing
// rows parsed during detection. Items that cannot be normalized are failed.
func (idx *Indexer) normalize(
	ctx context.Context,
	rc *RunContext,
	collector *Collector,
	pending []Detection,
	mtimes library.MTimeMap,
	fail func(ItemError),
) []database.Item {
	rows := make([]database.Item, 0, len(pending))

	workers.Run(ctx, pending,
		idx.workerOptions(rc),
		func(ctx context.Context, d Detection) (database.Item, error) {
			if d.Normalized != nil {
				return d.Normalized.Item, nil
			}
			var override *time.Time
			if mt, ok := mtimes[d.Item.ID]; ok {
				override = &mt
			}
			n, err := collector.Load(ctx, d.Item, override)
			if err != nil {
				return database.Item{}, err
			}
			return n.Item, nil
		},
		func(results []workers.Result[database.Item]) {
			for _, r := range results {
				if r.Err != nil {
					fail(ItemError{ID: pending[r.Index].Item.ID, Phase: StateUpserting, Err: r.Err})
					continue
				}
				row := r.Value
				row.LastWriteAt = rc.StartedAt
				rows = append(rows, row)
			}
		})

	return rows
}

func (idx *Indexer) workerOptions(rc *RunContext) workers.Options {
	opts := workers.Options{Concurrency: rc.Concurrency, ChunkSize: rc.ChunkSize}
	if idx.monitor != nil {
		opts.Gate = idx.monitor.Wait
	}
	return opts
}

// tally fills the per-class counts and ID lists from the final classes.
func tally(res *SyncResult, classes map[string]Class) {
	for id, class := range classes {
		switch class {
		case ClassNew:
			res.NewIDs = append(res.NewIDs, id)
		case ClassModified:
			res.ModifiedIDs = append(res.ModifiedIDs, id)
		case ClassUnchanged:
			res.Unchanged++
		case ClassErrored:
			res.ErroredIDs = append(res.ErroredIDs, id)
		}
	}
	sort.Strings(res.NewIDs)
	sort.Strings(res.ModifiedIDs)
	sort.Strings(res.ErroredIDs)
	sort.Strings(res.DeletedIDs)

	res.New = len(res.NewIDs)
	res.Modified = len(res.ModifiedIDs)
	res.Errored = len(res.ErroredIDs)
	res.Deleted = len(res.DeletedIDs)
}

func (idx *Indexer) recordMetrics(res *SyncResult) {
	metrics.SyncRunsTotal.WithLabelValues(string(res.State)).Inc()
	metrics.SyncLastRunTimestamp.Set(float64(res.FinishedAt.Unix()))
	metrics.SyncLastRunDuration.Set(res.Elapsed.Seconds())

	if res.State != StateCompleted {
		return
	}
	for class, n := range map[string]int{
		"new":       res.New,
		"modified":  res.Modified,
		"unchanged": res.Unchanged,
		"errored":   res.Errored,
		"deleted":   res.Deleted,
	} {
		metrics.SyncItemsClassified.WithLabelValues(class).Add(float64(n))
		metrics.SyncLastRunItems.WithLabelValues(class).Set(float64(n))
	}
}

func formatCursor(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.RFC3339)
}
