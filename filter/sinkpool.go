package filter

import "github.com/grailbio/base/errors"

// SinkFactory opens the output sink for a split group. reopen is true
// when the group was open before and evicted; the factory must then
// open in append mode so the byte stream continues where it left off.
// The returned func closes the underlying handle.
type SinkFactory func(group string, reopen bool) (Sink, func() error, error)

// SinkPool is a bounded pool of split output sinks. The host
// environment may limit simultaneously open files, so at most limit
// handles stay open; opening one more evicts the least-recently-opened
// handle, deterministically.
type SinkPool struct {
	limit   int
	factory SinkFactory
	open    map[string]*pooledSink
	order   []string // open order, oldest first
	seen    map[string]bool
	groups  []string // every group ever seen, in first-open order
}

type pooledSink struct {
	sink    Sink
	closeFn func() error
}

// NewSinkPool creates a pool keeping at most limit sinks open.
func NewSinkPool(limit int, factory SinkFactory) *SinkPool {
	return &SinkPool{
		limit:   limit,
		factory: factory,
		open:    make(map[string]*pooledSink),
		seen:    make(map[string]bool),
	}
}

// Sink returns the open sink for group, opening (or reopening in append
// mode) and evicting as needed.
func (p *SinkPool) Sink(group string) (Sink, error) {
	if s, ok := p.open[group]; ok {
		return s.sink, nil
	}
	for len(p.open) >= p.limit {
		oldest := p.order[0]
		p.order = p.order[1:]
		s := p.open[oldest]
		delete(p.open, oldest)
		if err := s.closeFn(); err != nil {
			return nil, errors.E(err, "closing split output", oldest)
		}
	}
	sink, closeFn, err := p.factory(group, p.seen[group])
	if err != nil {
		return nil, err
	}
	if !p.seen[group] {
		p.seen[group] = true
		p.groups = append(p.groups, group)
	}
	p.open[group] = &pooledSink{sink: sink, closeFn: closeFn}
	p.order = append(p.order, group)
	return sink, nil
}

// Groups returns every group ever routed to, in first-open order.
func (p *SinkPool) Groups() []string {
	return append([]string(nil), p.groups...)
}

// Close closes all open sinks, returning the first error.
func (p *SinkPool) Close() error {
	var firstErr error
	for _, group := range p.order {
		if s, ok := p.open[group]; ok {
			if err := s.closeFn(); err != nil && firstErr == nil {
				firstErr = err
			}
			delete(p.open, group)
		}
	}
	p.order = nil
	return firstErr
}
