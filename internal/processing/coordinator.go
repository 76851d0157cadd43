package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/chunker"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/extract"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/store"
)

const (
	// DefaultWorkers is the worker pool size when none is configured
	DefaultWorkers = 2

	// DefaultQueueSize is the queue capacity when none is configured
	DefaultQueueSize = 64
)

// Progress milestones of one attempt.
const (
	ProgressClaimed    = 5
	ProgressExtracting = 10
	ProgressExtracted  = 80
	ProgressChunking   = 85
	ProgressPersisting = 95
)

var (
	// ErrQueueFull indicates the work queue has no room; the document stays pending.
	ErrQueueFull = errors.New("processing queue is full")

	// ErrStopped indicates the coordinator no longer accepts work.
	ErrStopped = errors.New("coordinator is stopped")
)

// Extractor turns raw bytes into text.
type Extractor interface {
	Supports(filename string) bool
	Extract(ctx context.Context, src extract.Source, progress extract.ProgressFunc) (extract.Result, error)
}

// DocumentStore is the store surface the coordinator drives.
type DocumentStore interface {
	Get(key domain.DocumentKey) (domain.Document, error)
	ReadRaw(key domain.DocumentKey) ([]byte, error)
	RawPath(key domain.DocumentKey) (string, error)
	CreateDocument(project, filename string, raw []byte, overwrite bool) (domain.Document, error)
	MarkProcessing(key domain.DocumentKey) (domain.Document, error)
	UpdateProgress(key domain.DocumentKey, progress int) error
	CommitChunks(key domain.DocumentKey, out store.Outcome) (domain.Document, error)
	MarkError(key domain.DocumentKey, detail string) (domain.Document, error)
	Delete(key domain.DocumentKey) error
	MoveDocument(key domain.DocumentKey, to string, overwrite bool) (domain.Document, error)
	Pending() []domain.DocumentKey
}

// Options configures a Coordinator.
type Options struct {
	Workers   int
	QueueSize int
	Chunking  chunker.Options
	Logger    *slog.Logger
}

// Coordinator drives documents through pending → processing → completed | error
// on a bounded worker pool. At most one task exists per document key.
type Coordinator struct {
	store     DocumentStore
	extractor Extractor
	opts      Options
	logger    *slog.Logger

	// inflight holds every key that is queued or being processed.
	mu       sync.Mutex
	inflight map[domain.DocumentKey]struct{}
	started  bool
	stopped  bool

	queue  chan domain.DocumentKey
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator creates a coordinator. Call Start to run the workers.
func NewCoordinator(st DocumentStore, extractor Extractor, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Chunking == (chunker.Options{}) {
		opts.Chunking = chunker.DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:     st,
		extractor: extractor,
		opts:      opts,
		logger:    opts.Logger,
		inflight:  make(map[domain.DocumentKey]struct{}),
		queue:     make(chan domain.DocumentKey, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers and queues documents left pending by a previous run.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	c.fill()
	c.logger.Info("Processing coordinator started", "workers", c.opts.Workers, "queue_size", c.opts.QueueSize)
}

// Shutdown stops accepting work and waits for running attempts to finish.
// When ctx expires first, running attempts are cancelled and recorded as interrupted.
// Queued documents stay pending and are picked up on the next start.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.queue)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// Supports reports whether filename has a registered extraction chain.
func (c *Coordinator) Supports(filename string) bool {
	return c.extractor.Supports(filename)
}

// InFlight returns the number of queued or running documents.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Upload stores raw as (project, filename) and schedules it for processing.
func (c *Coordinator) Upload(project, filename string, raw []byte, overwrite bool) (domain.Document, error) {
	if !c.extractor.Supports(filename) {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filename)
	}
	doc, err := c.store.CreateDocument(project, filename, raw, overwrite)
	if err != nil {
		return domain.Document{}, err
	}

	// A key still in flight, or one the queue has no room for, stays pending
	// and is queued when a running task releases its claim.
	err = c.Submit(doc.Key())
	switch {
	case err == nil, errors.Is(err, domain.ErrConcurrentProcessing):
	case errors.Is(err, ErrQueueFull):
		c.logger.Info("Processing queue full, document left pending", "project", project, "filename", filename)
	default:
		c.logger.Warn("Document stored but not queued", "project", project, "filename", filename, "error", err)
	}
	return doc, nil
}

// Submit schedules key. A key already queued or processing is rejected.
func (c *Coordinator) Submit(key domain.DocumentKey) error {
	if err := c.claim(key); err != nil {
		return err
	}
	return c.enqueue(key)
}

// Retry schedules a new attempt for a document in error (or left pending).
func (c *Coordinator) Retry(key domain.DocumentKey) (domain.Document, error) {
	return c.restart(key, func(doc domain.Document) error {
		if doc.Status == domain.StatusCompleted {
			return fmt.Errorf("%w: %s is already completed, use reprocess", domain.ErrInvalidTransition, key)
		}
		return nil
	})
}

// Reprocess schedules a new attempt for a completed or failed document.
// The committed chunk set stays visible until the new attempt completes.
func (c *Coordinator) Reprocess(key domain.DocumentKey) (domain.Document, error) {
	return c.restart(key, nil)
}

func (c *Coordinator) restart(key domain.DocumentKey, allowed func(domain.Document) error) (domain.Document, error) {
	doc, err := c.store.Get(key)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.Status == domain.StatusProcessing {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
	}
	if allowed != nil {
		if err := allowed(doc); err != nil {
			return domain.Document{}, err
		}
	}
	if err := c.Submit(key); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Delete removes a document. Documents being processed are refused.
func (c *Coordinator) Delete(key domain.DocumentKey) error {
	return c.store.Delete(key)
}

// Move relocates a document to another project. Queued or running documents are refused.
func (c *Coordinator) Move(key domain.DocumentKey, to string, overwrite bool) (domain.Document, error) {
	// Holding the claim keeps Retry and Reprocess off the key while it moves.
	if err := c.claim(key); err != nil {
		return domain.Document{}, err
	}
	doc, err := c.store.MoveDocument(key, to, overwrite)
	c.release(key)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.Status == domain.StatusPending {
		if err := c.Submit(doc.Key()); err != nil && !errors.Is(err, domain.ErrConcurrentProcessing) {
			c.logger.Warn("Moved document not queued", "project", to, "filename", key.Filename, "error", err)
		}
	}
	return doc, nil
}

func (c *Coordinator) claim(key domain.DocumentKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if _, ok := c.inflight[key]; ok {
		return fmt.Errorf("%w: %s", domain.ErrConcurrentProcessing, key)
	}
	c.inflight[key] = struct{}{}
	return nil
}

func (c *Coordinator) enqueue(key domain.DocumentKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		delete(c.inflight, key)
		return ErrStopped
	}
	select {
	case c.queue <- key:
		return nil
	default:
		delete(c.inflight, key)
		return fmt.Errorf("%w: %s", ErrQueueFull, key)
	}
}

// release ends the task for key and tops the queue up from the store, so
// documents left pending by a full queue or a re-upload are scheduled.
func (c *Coordinator) release(key domain.DocumentKey) {
	c.mu.Lock()
	delete(c.inflight, key)
	stopped := c.stopped
	c.mu.Unlock()

	if !stopped {
		c.fill()
	}
}

// fill queues pending documents that have no task until the queue is full.
func (c *Coordinator) fill() {
	for _, key := range c.store.Pending() {
		err := c.Submit(key)
		switch {
		case err == nil, errors.Is(err, domain.ErrConcurrentProcessing):
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrStopped):
			return
		default:
			c.logger.Warn("Failed to queue pending document", "project", key.Project, "filename", key.Filename, "error", err)
		}
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for key := range c.queue {
		if c.ctx.Err() != nil || c.isStopped() {
			c.release(key)
			continue
		}
		c.process(key)
		c.release(key)
	}
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// process runs one attempt end to end.
func (c *Coordinator) process(key domain.DocumentKey) {
	log := c.logger.With("project", key.Project, "filename", key.Filename)

	doc, err := c.store.MarkProcessing(key)
	if err != nil {
		// Deleted or moved while queued.
		log.Info("Skipping document", "reason", err)
		return
	}
	log.Info("Processing started", "attempt", doc.Attempts)

	progress := &progressReporter{store: c.store, key: key}
	progress.report(ProgressClaimed)

	out, err := c.run(c.ctx, key, progress)
	if err != nil {
		detail := err.Error()
		if c.ctx.Err() != nil {
			detail = store.InterruptedDetail
		}
		if _, merr := c.store.MarkError(key, detail); merr != nil {
			log.Error("Failed to record processing error", "error", merr)
		}
		log.Warn("Processing failed", "attempt", doc.Attempts, "error", err)
		return
	}

	done, err := c.store.CommitChunks(key, out)
	if err != nil {
		if _, merr := c.store.MarkError(key, err.Error()); merr != nil {
			log.Error("Failed to record processing error", "error", merr)
		}
		log.Error("Failed to commit chunks", "error", err)
		return
	}
	log.Info("Processing completed", "method", done.Method, "chunks", done.TotalChunks, "chars", done.TotalChars)
}

func (c *Coordinator) run(ctx context.Context, key domain.DocumentKey, progress *progressReporter) (store.Outcome, error) {
	raw, err := c.store.ReadRaw(key)
	if err != nil {
		return store.Outcome{}, err
	}
	path, err := c.store.RawPath(key)
	if err != nil {
		return store.Outcome{}, err
	}

	progress.report(ProgressExtracting)
	src := extract.Source{Filename: key.Filename, Data: raw, Path: path}
	res, err := c.extractor.Extract(ctx, src, func(p int) {
		progress.report(ProgressExtracting + p*(ProgressExtracted-ProgressExtracting)/100)
	})
	if err != nil {
		return store.Outcome{}, err
	}
	progress.report(ProgressExtracted)

	progress.report(ProgressChunking)
	chunks := chunker.Chunk(res.Text, c.opts.Chunking)
	if len(chunks) == 0 {
		return store.Outcome{}, fmt.Errorf("%w: no text to chunk", domain.ErrExtractionExhausted)
	}

	out := store.Outcome{
		Chunks:     chunks,
		TotalChars: utf8.RuneCountInString(res.Text),
		Method:     res.Method,
	}
	if domain.FileExtension(key.Filename) == ".pdf" {
		if info, err := extract.InspectPDF(raw); err == nil {
			out.PageCount = info.PageCount
		}
	}

	progress.report(ProgressPersisting)
	return out, nil
}

// progressReporter forwards non-decreasing progress to the store.
// Tiers may report from several goroutines.
type progressReporter struct {
	store DocumentStore
	key   domain.DocumentKey

	mu   sync.Mutex
	last int
}

func (p *progressReporter) report(value int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if value <= p.last {
		return
	}
	p.last = value
	_ = p.store.UpdateProgress(p.key, value)
}
