// Package event implements typed event interfaces and their connection
// pools. An event interface is just a Go function type (the call
// signature R(A1, …, An)); Pool[F] is the generic connection pool that
// replaces a source's heavy preprocessor iteration over arities with Go
// generics. The FireN helpers below are the arity ladder Go still needs
// because it has no variadic generics, a true variadic-generics target
// language would collapse them into one.
package event

import "github.com/quartzsim/core/simerr"

// Cookie is the stable, non-zero identity of a connected sink. Cookies
// are 1-based slot indices and may be reused once their slot is freed.
type Cookie int

type slot[F any] struct {
	sink F
	used bool
}

// Pool is an ordered connection pool from cookie to sink: connect
// places the sink in the lowest-index free slot; a per-pool "last
// occupied" marker avoids scanning empty tails during fan-out. Capacity
// 0 means unbounded.
type Pool[F any] struct {
	slots    []slot[F]
	last     int // highest occupied index; -1 if none
	capacity int
}

// NewPool returns an empty pool. capacity 0 means unbounded.
func NewPool[F any](capacity int) *Pool[F] {
	return &Pool[F]{last: -1, capacity: capacity}
}

// Connect places sink in the lowest-index free slot, growing the pool
// if needed, and returns its cookie (slot+1). It fails with
// ConnectionLimit if the pool has a bounded capacity and is full.
func (p *Pool[F]) Connect(sink F) (Cookie, error) {
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = slot[F]{sink: sink, used: true}
			if i > p.last {
				p.last = i
			}
			return Cookie(i + 1), nil
		}
	}
	if p.capacity > 0 && len(p.slots) >= p.capacity {
		return 0, simerr.New("Pool.Connect", simerr.CodeConnectionLimit, "pool is at capacity")
	}
	p.slots = append(p.slots, slot[F]{sink: sink, used: true})
	p.last = len(p.slots) - 1
	return Cookie(len(p.slots)), nil
}

// Disconnect frees the slot identified by c. An unknown or already-free
// cookie is a silent no-op, so teardown paths stay idempotent.
func (p *Pool[F]) Disconnect(c Cookie) {
	idx := int(c) - 1
	if idx < 0 || idx >= len(p.slots) || !p.slots[idx].used {
		return
	}
	var zero F
	p.slots[idx] = slot[F]{sink: zero, used: false}
	for p.last >= 0 && !p.slots[p.last].used {
		p.last--
	}
}

// Len reports the number of currently connected sinks.
func (p *Pool[F]) Len() int {
	n := 0
	for i := 0; i <= p.last; i++ {
		if p.slots[i].used {
			n++
		}
	}
	return n
}

// Each calls fn once per connected sink, in ascending cookie order. The
// set of (cookie, sink) pairs visited is fixed at the start of the
// call, a Connect or Disconnect performed by fn (on this pool or any
// other) is only observed on the next Each/fire, never the current one.
func (p *Pool[F]) Each(fn func(cookie Cookie, sink F)) {
	n := p.last + 1
	if n == 0 {
		return
	}
	snapshot := make([]slot[F], n)
	copy(snapshot, p.slots[:n])
	for i, s := range snapshot {
		if s.used {
			fn(Cookie(i+1), s.sink)
		}
	}
}
