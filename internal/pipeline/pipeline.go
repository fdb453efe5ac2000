// Package pipeline implements the Streaming Pipeline (spec §4.9): a
// bounded producer/consumer that downloads filtered remote items, yields
// them to caller code, uploads results, and deletes local copies.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jaa/blackbird/internal/fsutil"
)

const stateFileName = ".pipeline_state.json"

var backoffSchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Item is one downloaded work unit handed to user code via Take.
type Item struct {
	RemotePath string
	LocalPath  string
	Metadata   map[string]string
}

// WorkSource yields remote items to prefetch. Implementations need not be
// concurrency-safe: the pipeline serializes calls to Next.
type WorkSource interface {
	// Next returns the next remote path and metadata, or ok=false when
	// the source is exhausted.
	Next(ctx context.Context) (remotePath string, metadata map[string]string, ok bool, err error)
}

// Downloader is the subset of transport.Client the pipeline needs.
type Downloader interface {
	Download(ctx context.Context, remoteRel, localAbs string) (int64, error)
}

// Uploader is the subset of transport.Client the pipeline needs.
type Uploader interface {
	Upload(ctx context.Context, localAbs, remoteRel string) error
}

// Config sizes the pipeline's worker pools and queues, per spec §5.
type Config struct {
	WorkDir         string
	QueueSize       int
	PrefetchWorkers int
	UploadWorkers   int
	DrainTimeout    time.Duration
}

// DefaultConfig matches spec §5's defaults.
func DefaultConfig(workDir string) Config {
	return Config{
		WorkDir:         workDir,
		QueueSize:       32,
		PrefetchWorkers: 4,
		UploadWorkers:   2,
		DrainTimeout:    30 * time.Second,
	}
}

type uploadJob struct {
	Item       Item
	ResultPath string
	RemoteName string
}

// stateDoc is the persisted shape of .pipeline_state.json. A remote item is
// considered fully handled once it's in Processed; on a resumed run the
// prefetch workers skip anything already marked here.
type stateDoc struct {
	Processed map[string]bool `json:"processed"`
}

// Pipeline coordinates prefetch and upload worker pools around a bounded
// download queue.
type Pipeline struct {
	cfg Config
	dl  Downloader
	ul  Uploader

	downloadQueue chan Item
	uploadQueue   chan uploadJob

	sourceMu sync.Mutex
	source   WorkSource

	stateMu sync.Mutex
	state   stateDoc

	prefetchWG sync.WaitGroup
	uploadWG   sync.WaitGroup
	closeQueue sync.Once

	errMu sync.Mutex
	errs  []error
}

// New constructs a Pipeline, loading any existing .pipeline_state.json
// under cfg.WorkDir so a restart resumes from where it left off.
func New(cfg Config, dl Downloader, ul Uploader) (*Pipeline, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = 4
	}
	if cfg.UploadWorkers <= 0 {
		cfg.UploadWorkers = 2
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}

	p := &Pipeline{
		cfg:           cfg,
		dl:            dl,
		ul:            ul,
		downloadQueue: make(chan Item, cfg.QueueSize),
		uploadQueue:   make(chan uploadJob, 1024),
		state:         stateDoc{Processed: map[string]bool{}},
	}

	if err := p.loadState(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) statePath() string {
	return filepath.Join(p.cfg.WorkDir, stateFileName)
}

func (p *Pipeline) loadState() error {
	payload, err := os.ReadFile(p.statePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read pipeline state: %w", err)
	}
	var doc stateDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parse pipeline state: %w", err)
	}
	if doc.Processed == nil {
		doc.Processed = map[string]bool{}
	}
	p.state = doc
	return nil
}

func (p *Pipeline) persistState() error {
	p.stateMu.Lock()
	payload, err := json.MarshalIndent(p.state, "", "  ")
	p.stateMu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}
	return fsutil.AtomicWriteBytes(p.statePath(), payload, 0o644)
}

func (p *Pipeline) markProcessed(remotePath string) {
	p.stateMu.Lock()
	p.state.Processed[remotePath] = true
	p.stateMu.Unlock()
}

func (p *Pipeline) alreadyProcessed(remotePath string) bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state.Processed[remotePath]
}

// Run starts the prefetch worker pool against source. It returns
// immediately; prefetching happens in the background until source is
// exhausted or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, source WorkSource) {
	p.source = source
	for i := 0; i < p.cfg.PrefetchWorkers; i++ {
		p.prefetchWG.Add(1)
		go p.prefetchLoop(ctx)
	}
	go func() {
		p.prefetchWG.Wait()
		p.closeQueue.Do(func() { close(p.downloadQueue) })
	}()
}

func (p *Pipeline) prefetchLoop(ctx context.Context) {
	defer p.prefetchWG.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		p.sourceMu.Lock()
		remotePath, metadata, ok, err := p.source.Next(ctx)
		p.sourceMu.Unlock()
		if err != nil {
			p.recordErr(fmt.Errorf("pipeline: work source: %w", err))
			return
		}
		if !ok {
			return
		}
		if p.alreadyProcessed(remotePath) {
			continue
		}

		localPath := filepath.Join(p.cfg.WorkDir, filepath.Base(remotePath))
		if err := p.downloadWithRetry(ctx, remotePath, localPath); err != nil {
			p.recordErr(fmt.Errorf("pipeline: download %s: %w", remotePath, err))
			continue
		}

		select {
		case p.downloadQueue <- Item{RemotePath: remotePath, LocalPath: localPath, Metadata: metadata}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) downloadWithRetry(ctx context.Context, remotePath, localPath string) error {
	var lastErr error
	for attempt, delay := range backoffSchedule {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.dl.Download(ctx, remotePath, localPath); err == nil {
			return nil
		} else {
			lastErr = err
		}
		os.Remove(localPath)
		if attempt < len(backoffSchedule)-1 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 4))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// Take blocks until count items are ready or the stream is exhausted,
// returning fewer only on exhaustion; an empty, non-nil slice signals the
// end of the stream.
func (p *Pipeline) Take(ctx context.Context, count int) ([]Item, error) {
	items := make([]Item, 0, count)
	for len(items) < count {
		select {
		case item, ok := <-p.downloadQueue:
			if !ok {
				return items, nil
			}
			items = append(items, item)
		case <-ctx.Done():
			return items, ctx.Err()
		}
	}
	return items, nil
}

// SubmitResult enqueues item's result for upload. The upload queue holds
// 1024 jobs; a call blocks only while that many uploads are waiting.
func (p *Pipeline) SubmitResult(item Item, resultPath, remoteName string) {
	p.uploadQueue <- uploadJob{Item: item, ResultPath: resultPath, RemoteName: remoteName}
}

// Skip deletes item's local source copy without uploading anything.
func (p *Pipeline) Skip(item Item) error {
	p.markProcessed(item.RemotePath)
	if err := os.Remove(item.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pipeline: skip %s: %w", item.RemotePath, err)
	}
	return nil
}

// StartUploaders starts the upload worker pool. Call once after Run.
func (p *Pipeline) StartUploaders(ctx context.Context) {
	for i := 0; i < p.cfg.UploadWorkers; i++ {
		p.uploadWG.Add(1)
		go p.uploadLoop(context.WithoutCancel(ctx))
	}
}

func (p *Pipeline) uploadLoop(ctx context.Context) {
	defer p.uploadWG.Done()
	for job := range p.uploadQueue {
		if err := p.uploadWithRetry(ctx, job); err != nil {
			p.recordErr(fmt.Errorf("pipeline: upload %s: %w", job.RemoteName, err))
			continue
		}
		os.Remove(job.Item.LocalPath)
		os.Remove(job.ResultPath)
		p.markProcessed(job.Item.RemotePath)
	}
}

func (p *Pipeline) uploadWithRetry(ctx context.Context, job uploadJob) error {
	var lastErr error
	for attempt, delay := range backoffSchedule {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.ul.Upload(ctx, job.ResultPath, job.RemoteName); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < len(backoffSchedule)-1 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 4))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (p *Pipeline) recordErr(err error) {
	p.errMu.Lock()
	p.errs = append(p.errs, err)
	p.errMu.Unlock()
}

// Errors returns every prefetch/upload error recorded so far.
func (p *Pipeline) Errors() []error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	out := make([]error, len(p.errs))
	copy(out, p.errs)
	return out
}

// Shutdown waits for prefetching to stop (driven by ctx cancellation),
// drains in-flight uploads up to cfg.DrainTimeout, persists state, and
// returns.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.prefetchWG.Wait()
	p.closeQueue.Do(func() { close(p.downloadQueue) })
	close(p.uploadQueue)

	drained := make(chan struct{})
	go func() {
		p.uploadWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(p.cfg.DrainTimeout):
	}

	return p.persistState()
}
