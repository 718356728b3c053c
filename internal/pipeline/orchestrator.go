package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docchunk/internal/assetstore"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/engine"
)

// ErrStopped is returned by Submit once the orchestrator has been stopped.
var ErrStopped = errors.New("pipeline is stopped")

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	sinks  []Sink
	assets *assetstore.Store
	stats  *StageStats
	log    *slog.Logger
	cfg    config.Config

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.RWMutex // guards stopped and the queue close
	stopped bool
}

// NewOrchestrator creates the pipeline. The first sink is the duplicate index.
func NewOrchestrator(cfg config.Config, sinks []Sink, assets *assetstore.Store, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, max(cfg.MaxQueueSize, 1)),
		sinks:  sinks,
		assets: assets,
		stats:  NewStageStats(time.Hour),
		log:    log,
		cfg:    cfg,
	}
}

// WorkerConfig derives the per-job settings from the service config.
func (o *Orchestrator) WorkerConfig() WorkerConfig {
	opts := engine.DefaultOptions()
	opts.ChunkSize = o.cfg.ChunkSize
	opts.HeadingSplitDepth = o.cfg.HeadingSplitDepth
	opts.ExtractAssets = o.cfg.ExtractAssets
	opts.SequentialFallback = o.cfg.SequentialFallback
	return WorkerConfig{
		Engine:               opts,
		VectorDimension:      o.cfg.VectorDimension,
		MaxConcurrentStore:   o.cfg.MaxConcurrentStore,
		PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.sinks, o.assets, o.stats, o.log, o.WorkerConfig())
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		o.mu.Lock()
		o.stopped = true
		close(o.queue)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the per-stage latency recorder.
func (o *Orchestrator) Stats() *StageStats {
	return o.stats
}
