// Package collection drives the IDLE/COLLECTING lifecycle: it wires sources
// into a merger, feeds the active ride session from a single consumer and
// hands finished sessions to persistence as save requests.
package collection

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/sensor"
)

// LiveTopic receives every snapshot regardless of the session id.
const LiveTopic = "live"

const fileNameLayout = "20060102_150405"

type Snapshot struct {
	IsCollecting bool                          `json:"isCollecting"`
	SessionID    string                        `json:"sessionId,omitempty"`
	StartedAt    *time.Time                    `json:"startedAt,omitempty"`
	Stats        ride.Stats                    `json:"stats"`
	Sources      map[string]merge.SourceStatus `json:"sources,omitempty"`
	Dropped      int64                         `json:"dropped"`
}

// SaveRequest carries a finished session to whoever persists it.
type SaveRequest struct {
	SessionID         string          `json:"sessionId"`
	SuggestedFileName string          `json:"suggestedFileName"`
	StartedAt         time.Time       `json:"startedAt"`
	StoppedAt         time.Time       `json:"stoppedAt"`
	Stats             ride.Stats      `json:"stats"`
	Events            []sensor.Sample `json:"-"`
}

// SuggestedFileName names an export after the wall-clock time it was taken.
func SuggestedFileName(at time.Time) string {
	return "session_raw_all_" + at.Format(fileNameLayout) + ".json"
}

// SourceFactory builds a fresh set of sources for every session.
type SourceFactory func() []merge.Source

// Publisher receives encoded snapshots, e.g. the websocket hub.
type Publisher interface {
	Broadcast(topic string, payload []byte)
}

type Options struct {
	Session          ride.Config
	QueueSize        int
	SaveQueueSize    int
	SnapshotInterval time.Duration
	Now              func() time.Time
	Publisher        Publisher
}

func DefaultOptions() Options {
	return Options{
		Session:          ride.DefaultConfig(),
		QueueSize:        256,
		SaveQueueSize:    4,
		SnapshotInterval: 250 * time.Millisecond,
	}
}

type Controller struct {
	opts    Options
	sources SourceFactory

	// lifecycle serialises Start and Stop; mu guards the fields below.
	lifecycle   sync.Mutex
	mu          sync.RWMutex
	collecting  bool
	session     *ride.Session
	merger      *merge.Merger
	done        chan struct{}
	lastSources map[string]merge.SourceStatus
	lastDropped int64

	saves chan SaveRequest

	watchMu  sync.Mutex
	watchers map[int]chan Snapshot
	nextID   int
}

func NewController(sources SourceFactory, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = DefaultOptions().SnapshotInterval
	}
	if opts.SaveQueueSize < 1 {
		opts.SaveQueueSize = 1
	}
	if sources == nil {
		sources = func() []merge.Source { return nil }
	}
	return &Controller{
		opts:     opts,
		sources:  sources,
		saves:    make(chan SaveRequest, opts.SaveQueueSize),
		watchers: map[int]chan Snapshot{},
	}
}

// Start opens a new session and subscribes to the sources. It returns false
// when a session is already collecting.
func (c *Controller) Start(ctx context.Context) bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.collecting {
		c.mu.Unlock()
		return false
	}
	session := ride.NewSession(c.opts.Session, c.opts.Now())
	merger := merge.New(c.opts.QueueSize, c.sources()...)
	done := make(chan struct{})
	c.collecting = true
	c.session = session
	c.merger = merger
	c.done = done
	c.mu.Unlock()

	merger.Start(ctx)
	go c.consume(session, merger, done)

	log.Printf("collection: started session %s", session.ID)
	c.publish(c.Snapshot())
	return true
}

func (c *Controller) consume(session *ride.Session, merger *merge.Merger, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.SnapshotInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case sample, ok := <-merger.Events():
			if !ok {
				return
			}
			if session.OnEvent(sample) {
				dirty = true
			}
		case <-ticker.C:
			if dirty {
				dirty = false
				c.publish(c.Snapshot())
			}
		}
	}
}

// Stop unsubscribes every source, drains what was already queued into the
// session and closes it. A non-empty session yields exactly one save
// request. It returns false when idle.
func (c *Controller) Stop() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	collecting, session, merger, done := c.collecting, c.session, c.merger, c.done
	c.mu.RUnlock()
	if !collecting {
		return false
	}

	merger.Stop()
	<-done
	stats := session.Snapshot()
	events := session.Close()
	stoppedAt := c.opts.Now()

	c.mu.Lock()
	c.collecting = false
	c.merger = nil
	c.done = nil
	c.lastSources = merger.Status()
	c.lastDropped = merger.Stats().Dropped
	c.mu.Unlock()

	c.publish(c.Snapshot())

	if len(events) == 0 {
		log.Printf("collection: session %s stopped with no data", session.ID)
		return true
	}
	log.Printf("collection: session %s stopped with %d events", session.ID, len(events))
	c.emitSave(SaveRequest{
		SessionID:         session.ID,
		SuggestedFileName: SuggestedFileName(stoppedAt),
		StartedAt:         session.StartedAt,
		StoppedAt:         stoppedAt,
		Stats:             stats,
		Events:            events,
	})
	return true
}

func (c *Controller) emitSave(req SaveRequest) {
	select {
	case c.saves <- req:
	default:
		log.Printf("collection: save queue full, delivering %s asynchronously", req.SuggestedFileName)
		go func() { c.saves <- req }()
	}
}

// SaveRequests delivers finished sessions. Requests are never dropped.
func (c *Controller) SaveRequests() <-chan SaveRequest {
	return c.saves
}

// ResetMax clears the running maxima of the active session, or of the last
// finished one while idle. Recorded events are kept.
func (c *Controller) ResetMax() {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return
	}
	session.ResetMax()
	c.publish(c.Snapshot())
}

func (c *Controller) IsCollecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collecting
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{IsCollecting: c.collecting}
	if c.session != nil {
		startedAt := c.session.StartedAt
		snap.SessionID = c.session.ID
		snap.StartedAt = &startedAt
		snap.Stats = c.session.Snapshot()
	}
	if c.merger != nil {
		snap.Sources = c.merger.Status()
		snap.Dropped = c.merger.Stats().Dropped
	} else {
		snap.Sources = c.lastSources
		snap.Dropped = c.lastDropped
	}
	return snap
}

// Watch streams snapshots with latest-value semantics: a slow reader only
// sees the newest one. The current snapshot is delivered first.
func (c *Controller) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	ch <- c.Snapshot()

	c.watchMu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	c.watchMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.watchMu.Lock()
			delete(c.watchers, id)
			close(ch)
			c.watchMu.Unlock()
		})
	}
	return ch, cancel
}

func (c *Controller) publish(snap Snapshot) {
	c.watchMu.Lock()
	for _, ch := range c.watchers {
		// replace a stale value nobody has read yet
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	c.watchMu.Unlock()

	if c.opts.Publisher == nil || snap.SessionID == "" {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("collection: encode snapshot: %v", err)
		return
	}
	c.opts.Publisher.Broadcast(snap.SessionID, payload)
	c.opts.Publisher.Broadcast(LiveTopic, payload)
}
