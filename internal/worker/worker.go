// Package worker runs mention pipelines detached from the webhook response.
// The webhook handler enqueues a command carrying the parsed event; a pool of
// goroutines drains the queue and executes the pipeline. The handler never
// waits on a pipeline, so the webhook's few-second response budget is never
// spent on external-API round trips. No ordering holds across events; within
// one event the pipeline is strictly sequential.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/savethebeat/savethebeat/internal/slack"
)

// queueDrops counts mentions dropped because the pipeline queue was full.
var queueDrops = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "savethebeat_pipeline_queue_drops_total",
	Help: "Mention events dropped because the pipeline queue was full.",
})

func init() {
	prometheus.MustRegister(queueDrops)
}

// Pipeline is the per-event unit of work. Implemented by
// services.MentionService.
type Pipeline interface {
	Process(ctx context.Context, m *slack.MentionEvent) error
}

// Pool executes mention pipelines on a fixed number of goroutines fed by a
// bounded queue.
type Pool struct {
	pipeline Pipeline
	jobs     chan *slack.MentionEvent
	workers  int
	timeout  time.Duration

	// mu guards closed; the jobs channel may only be closed or sent to
	// under it, so an Enqueue racing Shutdown can never hit a closed channel.
	mu     sync.Mutex
	closed bool

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool constructs a Pool. workers <= 0 defaults to 4, queueSize <= 0 to
// 64, timeout <= 0 to 60 seconds. The timeout bounds one whole pipeline run;
// individual provider calls carry their own shorter client timeouts.
func NewPool(p Pipeline, workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pool{
		pipeline: p,
		jobs:     make(chan *slack.MentionEvent, queueSize),
		workers:  workers,
		timeout:  timeout,
	}
}

// Start launches the worker goroutines. Safe to call once; later calls are
// no-ops.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run()
		}
	})
}

// Enqueue hands a mention to the pool without blocking. It reports false when
// the queue is full or the pool is shutting down; the caller has already
// acknowledged the webhook either way.
func (p *Pool) Enqueue(m *slack.MentionEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.Warn().
			Str("workspace_id", m.WorkspaceID).
			Str("channel_id", m.ChannelID).
			Msg("pool shut down, dropping mention")
		return false
	}

	select {
	case p.jobs <- m:
		return true
	default:
		queueDrops.Inc()
		log.Warn().
			Str("workspace_id", m.WorkspaceID).
			Str("channel_id", m.ChannelID).
			Msg("pipeline queue full, dropping mention")
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight and queued pipelines
// to finish, or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drains the queue until it is closed. Pipeline errors are terminal to
// the event alone: they are logged and never affect other events or the
// webhook transport.
func (p *Pool) run() {
	defer p.wg.Done()
	for m := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.pipeline.Process(ctx, m); err != nil {
			log.Error().
				Err(err).
				Str("workspace_id", m.WorkspaceID).
				Str("user_id", m.UserID).
				Str("thread_ts", m.ThreadTS).
				Msg("mention pipeline failed")
		}
		cancel()
	}
}
