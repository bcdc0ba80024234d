// Package pool implements the bounded worker pools the orchestrators run
// on, and the queue manager that pairs a pool with a bounded job queue and
// a result sink.
//
// Each worker lazily creates one backend Connection on its first job and
// reuses it for every job it is assigned afterwards. Connections are never
// shared between workers. A pool never retries a job; retry is a job-level
// concern handled inside the job body.
package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// Job is one unit of work submitted to exactly one pool. It is immutable
// once enqueued.
type Job struct {
	// Action and the context fields are used for the failure record when
	// the worker cannot obtain a connection, and for logging.
	Action    swifttypes.ActionKind
	Container string
	Object    string

	// Run performs the work on the worker's connection and emits zero or
	// more result records. Most jobs emit exactly one; a listing job emits
	// one per page.
	Run func(ctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord))
}

// Manager pairs one worker pool with a bounded job queue and a result sink.
// Enqueue blocks while the queue is full. Close stops intake, waits for the
// queue to drain and all in-flight jobs to finish, then tears the workers
// down, closing their connections.
type Manager struct {
	name    string
	ctx     context.Context
	factory swiftapi.ConnectionFactory
	results chan<- *swifttypes.ResultRecord
	log     *zap.Logger

	jobs    chan Job
	workers sync.WaitGroup
	pending sync.WaitGroup
	senders sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager starts a pool of the given size bound to factory. Results are
// delivered to the shared sink channel. queueDepth bounds the job queue;
// when zero it defaults to twice the worker count.
func NewManager(
	ctx context.Context,
	name string,
	factory swiftapi.ConnectionFactory,
	workers, queueDepth int,
	results chan<- *swifttypes.ResultRecord,
	log *zap.Logger,
) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers * 2
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		name:    name,
		ctx:     ctx,
		factory: factory,
		results: results,
		log:     log,
		jobs:    make(chan Job, queueDepth),
	}

	m.log.Debug("starting worker pool",
		zap.String("pool", name),
		zap.Int("workers", workers),
		zap.Int("queue_depth", queueDepth))

	for i := 0; i < workers; i++ {
		m.workers.Add(1)
		go m.worker(i)
	}
	return m
}

// Enqueue submits a job, blocking while the queue is full. It fails if the
// manager has been closed or the context is cancelled.
func (m *Manager) Enqueue(job Job) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.NewError("enqueue", errors.ErrInvalidInput).
			WithMessage("pool " + m.name + " is closed")
	}
	m.senders.Add(1)
	m.mu.Unlock()
	defer m.senders.Done()

	m.pending.Add(1)
	select {
	case m.jobs <- job:
		return nil
	case <-m.ctx.Done():
		m.pending.Done()
		return m.ctx.Err()
	}
}

// Drain blocks until every job enqueued so far has completed.
func (m *Manager) Drain() {
	m.pending.Wait()
}

// Close stops accepting new jobs, waits for the queue to drain and all
// in-flight jobs to finish, then tears the pool down. It is safe to call
// more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.workers.Wait()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.senders.Wait()
	close(m.jobs)
	m.workers.Wait()
	m.log.Debug("worker pool closed", zap.String("pool", m.name))
}

func (m *Manager) worker(id int) {
	defer m.workers.Done()

	// The connection is created lazily on the first job and owned by this
	// worker until teardown.
	var conn swiftapi.Connection
	defer func() {
		if conn != nil {
			if err := conn.Close(); err != nil {
				m.log.Debug("closing worker connection",
					zap.String("pool", m.name), zap.Int("worker", id), zap.Error(err))
			}
		}
	}()

	for job := range m.jobs {
		if conn == nil {
			created, err := m.factory(m.ctx)
			if err != nil {
				// Only this job fails; the next job assigned to this
				// worker tries the factory again.
				m.log.Warn("connection create failed",
					zap.String("pool", m.name), zap.Int("worker", id), zap.Error(err))
				m.emit(connectFailure(job, err))
				m.pending.Done()
				continue
			}
			m.log.Debug("worker connected",
				zap.String("pool", m.name), zap.Int("worker", id))
			conn = created
		}

		job.Run(m.ctx, conn, m.emit)
		m.pending.Done()
	}
}

func (m *Manager) emit(rec *swifttypes.ResultRecord) {
	if rec == nil || m.results == nil {
		return
	}
	m.results <- rec
}

func connectFailure(job Job, err error) *swifttypes.ResultRecord {
	now := time.Now()
	return &swifttypes.ResultRecord{
		Action:     job.Action,
		Success:    false,
		Container:  job.Container,
		Object:     job.Object,
		StartTime:  now,
		FinishTime: now,
		Attempts:   1,
		Error:      errors.NewError("connect", err),
	}
}
