// Package projection runs the background worker pool that mirrors each
// inserted or updated memory into the relationship graph, retrying
// transient failures with the spec's exact 7-attempt/1s-doubling policy
// before giving up and logging. It is the bounded worker pool called for
// by the "background coroutines via a runtime-provided event loop"
// redesign flag: a fixed number of long-lived goroutines consuming an
// in-memory task channel, built on internal/retry's backoff primitive.
package projection

import (
	"context"
	"sync"
	"time"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/graph"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/retry"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// Task is one unit of projection work: mirror mem into the graph.
type Task struct {
	Memory types.Memory
}

// Pool is a bounded pool of workers draining a task queue. Workers share
// one Engine; the Engine's own locking makes this safe.
type Pool struct {
	engine *graph.Engine
	log    logging.Logger
	cfg    retry.Config

	queue chan Task
	wg    sync.WaitGroup
}

// New builds a Pool per the spec's projection policy: 7 attempts,
// 1s initial delay doubling each time, no jitter (the spec names exact
// backoff values, so randomization is disabled here unlike retry's
// general-purpose default).
func New(engine *graph.Engine, cfg config.ProjectionConfig, log logging.Logger) *Pool {
	return &Pool{
		engine: engine,
		log:    log,
		cfg:    BuildRetryConfig(cfg),
		queue:  make(chan Task, 256),
	}
}

// BuildRetryConfig translates the projection section of Config into the
// retry package's policy: no jitter, since the spec names exact backoff
// values (1s, 2s, 4s, ... doubling) rather than a randomized range.
func BuildRetryConfig(cfg config.ProjectionConfig) retry.Config {
	return retry.Config{
		MaxAttempts:     cfg.MaxAttempts,
		InitialDelay:    cfg.InitialDelay,
		MaxDelay:        32 * time.Second,
		Multiplier:      cfg.Multiplier,
		RandomizeFactor: 0,
		RetryIf:         retry.DefaultRetryIf,
	}
}

// Start launches the worker goroutines. Call Stop to drain and join them.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
}

// Submit enqueues a memory for projection. While the queue's buffer has
// room it returns at once; when the buffer is full the send blocks until
// a worker takes a task, so nothing is dropped and an overloaded worker
// pool pushes back on the caller.
func (p *Pool) Submit(mem types.Memory) {
	p.queue <- Task{Memory: mem}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	r := retry.New(&p.cfg)

	for task := range p.queue {
		mem := task.Memory
		result := r.Do(ctx, func(ctx context.Context) error {
			return p.engine.ProjectMemory(ctx, mem)
		})
		if result.Err != nil && p.log != nil {
			p.log.Error("projection: exhausted retry budget",
				"memory_id", mem.ID, "owner_id", mem.OwnerID,
				"attempts", result.Attempts, "error", result.Err.Error())
		}
	}
}
