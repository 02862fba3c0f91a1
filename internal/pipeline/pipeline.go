package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/camera"
	"photobooth/internal/config"
	"photobooth/internal/export"
	"photobooth/internal/logging"
	"photobooth/internal/session"
	"photobooth/internal/storage"
)

// JobType enumerates the headless booth flows.
type JobType string

const (
	// JobStrip crops four supplied images and composes a strip.
	JobStrip JobType = "strip"
	// JobCapture takes four photos from the camera and composes a strip.
	JobCapture JobType = "capture"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Input is one source image, given inline or by path.
type Input struct {
	Name string
	Path string
	Data []byte
}

// Job represents a single strip request.
type Job struct {
	ID     string
	Type   JobType
	Mode   session.Mode
	Inputs []Input
	// Output is a directory the strip is also written to. Empty keeps it in memory only.
	Output  string
	Options map[string]any
}

// Result captures the outcome of a Job.
type Result struct {
	Job      Job
	Error    error
	Artifact *export.Artifact
	Meta     map[string]any
}

// Processor executes a job and returns a Result.
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// NewID returns a job id with a readable prefix.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// Pipeline orchestrates job dispatch across workers.
type Pipeline struct {
	processor Processor
	log       *slog.Logger
	jobs      chan Job
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	stopOnce  sync.Once
	store     *storage.Store
	mu        sync.Mutex
	closed    bool
	subs      map[int]chan Result
	nextSubID int
}

// New creates a Pipeline running cfg.Processing.ParallelJobs workers.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *storage.Store, dev camera.Device) *Pipeline {
	return NewWithProcessor(ctx, cfg.Processing.ParallelJobs, cfg.Processing.QueueSize, logger, store, newRouter(cfg, logger, store, dev))
}

// NewWithProcessor creates a Pipeline around an arbitrary processor.
func NewWithProcessor(ctx context.Context, concurrency, queue int, logger *slog.Logger, store *storage.Store, proc Processor) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if queue < 1 {
		queue = concurrency * 2
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		processor: proc,
		log:       logger,
		jobs:      make(chan Job, queue),
		cancel:    cancel,
		store:     store,
		subs:      make(map[int]chan Result),
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

// Submit adds a job to the processing queue.
func (p *Pipeline) Submit(job Job) error {
	if job.ID == "" {
		job.ID = NewID(string(job.Type))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipeline stopped")
	}

	if p.store != nil {
		optsJSON, _ := json.Marshal(job.Options)
		_ = p.store.RecordJobQueued(storage.JobRecord{
			ID:          job.ID,
			JobType:     string(job.Type),
			Mode:        string(job.Mode),
			Inputs:      len(job.Inputs),
			OptionsJSON: string(optsJSON),
		})
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		if p.store != nil {
			_ = p.store.RecordJobResult(job.ID, "rejected", "", ErrQueueFull.Error())
		}
		return ErrQueueFull
	}
}

// Stop signals workers to exit and waits for completion.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.cancel()
		p.wg.Wait()
		p.mu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	})
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			start := time.Now()
			logging.LogJobStart(p.log, string(job.Type), job.ID, len(job.Inputs), job.Options)
			if p.store != nil {
				_ = p.store.RecordJobStart(job.ID)
			}

			res := p.processor.Process(ctx, job)
			duration := time.Since(start)

			status, artifactID := "completed", ""
			if res.Artifact != nil {
				artifactID = res.Artifact.ID
			}
			if res.Error != nil {
				status = "failed"
				logging.LogJobError(p.log, string(job.Type), job.ID, duration, res.Error)
			} else {
				size := 0
				if res.Artifact != nil {
					size = len(res.Artifact.Data)
				}
				logging.LogJobComplete(p.log, string(job.Type), job.ID, duration, size)
			}
			if p.store != nil {
				_ = p.store.RecordJobResult(job.ID, status, artifactID, errString(res.Error))
			}

			p.broadcast(res)
		}
	}
}

// Subscribe returns a channel for receiving job results and an unsubscribe function.
func (p *Pipeline) Subscribe() (<-chan Result, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Result, 8)
	p.subs[id] = ch
	unsub := func() {
		p.mu.Lock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}
	return ch, unsub
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (p *Pipeline) broadcast(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- res:
		default:
			p.log.Warn("result channel full", "subscriber", id, "job", res.Job.ID)
		}
	}
}
