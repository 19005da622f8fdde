// Package source adapts sample producers (HTTP ingest, MQTT topics, recorded
// exports) to merge.Source.
package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/sensor"
)

var ErrAlreadySubscribed = errors.New("source already subscribed")

// gate forwards samples to the merger only while a Run is active. Closing it
// waits for in-flight offers, so nothing reaches emit after Run returns.
type gate struct {
	mu   sync.RWMutex
	emit merge.Emit
}

func (g *gate) open(emit merge.Emit) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.emit != nil {
		return false
	}
	g.emit = emit
	return true
}

func (g *gate) close() {
	g.mu.Lock()
	g.emit = nil
	g.mu.Unlock()
}

// offer reports whether the sample was accepted and whether anyone was
// subscribed.
func (g *gate) offer(s sensor.Sample) (accepted, subscribed bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.emit == nil {
		return false, false
	}
	return g.emit(s), true
}

// Push bridges callback-style producers into the merge. It outlives sessions:
// samples offered while no session is subscribed are discarded.
type Push struct {
	name string
	gate gate

	discarded atomic.Int64
}

func NewPush(name string) *Push {
	return &Push{name: name}
}

func (p *Push) Name() string { return p.name }

func (p *Push) Run(ctx context.Context, emit merge.Emit) error {
	if !p.gate.open(emit) {
		return ErrAlreadySubscribed
	}
	defer p.gate.close()
	<-ctx.Done()
	return nil
}

// Offer hands s to the current subscriber. It never blocks and returns false
// when the sample was dropped or nobody was subscribed.
func (p *Push) Offer(s sensor.Sample) bool {
	accepted, subscribed := p.gate.offer(s)
	if !subscribed {
		p.discarded.Add(1)
	}
	return accepted
}

func (p *Push) Subscribed() bool {
	p.gate.mu.RLock()
	defer p.gate.mu.RUnlock()
	return p.gate.emit != nil
}

// Discarded counts samples offered while unsubscribed.
func (p *Push) Discarded() int64 {
	return p.discarded.Load()
}
