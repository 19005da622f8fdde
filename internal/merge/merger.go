// Package merge fans independent sensor sources into one arrival-ordered
// stream with bounded, drop-newest buffering.
package merge

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"backend-mtbtrainer/internal/sensor"
)

// ErrSourceUnavailable is returned by a source whose sensor is absent or not
// permitted.
var ErrSourceUnavailable = errors.New("source unavailable")

// Emit hands a sample to the merger without blocking. It returns false when
// the sample was dropped.
type Emit func(sensor.Sample) bool

// Source produces samples until ctx is cancelled or it runs dry. Run must not
// call emit after it returns.
type Source interface {
	Name() string
	Run(ctx context.Context, emit Emit) error
}

type State string

const (
	StatePending     State = "pending"
	StateRunning     State = "running"
	StateEnded       State = "ended"
	StateUnavailable State = "unavailable"
)

type SourceStatus struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

type Stats struct {
	Received int64 `json:"received"`
	Dropped  int64 `json:"dropped"`
}

type Merger struct {
	sources []Source
	out     chan sensor.Sample

	mu       sync.RWMutex
	closed   bool
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	statusMu sync.RWMutex
	status   map[string]SourceStatus

	received atomic.Int64
	dropped  atomic.Int64
}

func New(queueSize int, sources ...Source) *Merger {
	if queueSize < 1 {
		queueSize = 1
	}
	status := make(map[string]SourceStatus, len(sources))
	for _, src := range sources {
		status[src.Name()] = SourceStatus{State: StatePending}
	}
	return &Merger{
		sources: sources,
		out:     make(chan sensor.Sample, queueSize),
		status:  status,
	}
}

// Events is the merged stream. It is closed by Stop.
func (m *Merger) Events() <-chan sensor.Sample {
	return m.out
}

// Start subscribes to every source. Calling it twice is a no-op.
func (m *Merger) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	for _, src := range m.sources {
		m.wg.Add(1)
		go m.run(ctx, src)
	}
}

func (m *Merger) run(ctx context.Context, src Source) {
	defer m.wg.Done()

	m.setStatus(src.Name(), SourceStatus{State: StateRunning})
	err := src.Run(ctx, m.offer)

	switch {
	case err == nil || errors.Is(err, context.Canceled):
		m.setStatus(src.Name(), SourceStatus{State: StateEnded})
	case errors.Is(err, ErrSourceUnavailable):
		log.Printf("merge: source %s unavailable: %v", src.Name(), err)
		m.setStatus(src.Name(), SourceStatus{State: StateUnavailable, Error: err.Error()})
	default:
		log.Printf("merge: source %s stopped: %v", src.Name(), err)
		m.setStatus(src.Name(), SourceStatus{State: StateEnded, Error: err.Error()})
	}
}

func (m *Merger) offer(s sensor.Sample) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}

	select {
	case m.out <- s:
		m.received.Add(1)
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Stop unsubscribes from every source and waits for them to return before
// closing Events. Samples offered afterwards are discarded.
func (m *Merger) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		cancel := m.cancel
		// no Start after Stop
		m.started = true
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		m.wg.Wait()

		m.mu.Lock()
		m.closed = true
		close(m.out)
		m.mu.Unlock()
	})
}

func (m *Merger) Stats() Stats {
	return Stats{Received: m.received.Load(), Dropped: m.dropped.Load()}
}

// Status reports the state of every source by name.
func (m *Merger) Status() map[string]SourceStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	out := make(map[string]SourceStatus, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

func (m *Merger) setStatus(name string, st SourceStatus) {
	m.statusMu.Lock()
	m.status[name] = st
	m.statusMu.Unlock()
}
