package event

// Source pairs a sink pool with the connect/disconnect surface an
// event-source object exposes to the rest of the model: connect(sink)
// returns a cookie, disconnect(cookie) detaches it again.
type Source[F any] struct {
	pool Pool[F]
}

// NewSource returns a source backed by an empty pool. capacity 0 means
// unbounded.
func NewSource[F any](capacity int) *Source[F] {
	return &Source[F]{pool: *NewPool[F](capacity)}
}

// Connect attaches sink and returns its cookie.
func (s *Source[F]) Connect(sink F) (Cookie, error) { return s.pool.Connect(sink) }

// Disconnect detaches the sink identified by cookie; unknown cookies are
// a silent no-op.
func (s *Source[F]) Disconnect(cookie Cookie) { s.pool.Disconnect(cookie) }

// Pool exposes the underlying pool for Fire helpers to iterate.
func (s *Source[F]) Pool() *Pool[F] { return &s.pool }

// Len reports the number of currently connected sinks.
func (s *Source[F]) Len() int { return s.pool.Len() }

// Void is the signature return type for event interfaces with no
// meaningful result.
type Void = struct{}

// Fire0 fans out a niladic event to every connected sink in cookie
// order and returns the value produced by the last one called (the
// zero value of R if the pool is empty).
func Fire0[R any](s *Source[func() R]) R {
	var result R
	s.Pool().Each(func(_ Cookie, sink func() R) {
		result = sink()
	})
	return result
}

// Fire1 is Fire0 for a single-argument signature.
func Fire1[A1, R any](s *Source[func(A1) R], a1 A1) R {
	var result R
	s.Pool().Each(func(_ Cookie, sink func(A1) R) {
		result = sink(a1)
	})
	return result
}

// Fire2 is Fire0 for a two-argument signature.
func Fire2[A1, A2, R any](s *Source[func(A1, A2) R], a1 A1, a2 A2) R {
	var result R
	s.Pool().Each(func(_ Cookie, sink func(A1, A2) R) {
		result = sink(a1, a2)
	})
	return result
}

// Fire3 is Fire0 for a three-argument signature.
func Fire3[A1, A2, A3, R any](s *Source[func(A1, A2, A3) R], a1 A1, a2 A2, a3 A3) R {
	var result R
	s.Pool().Each(func(_ Cookie, sink func(A1, A2, A3) R) {
		result = sink(a1, a2, a3)
	})
	return result
}
