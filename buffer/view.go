package buffer

import "github.com/quartzsim/core/simerr"

// View is one [start, end) window over a shared storage, with an
// optional zero-compressed sub-window [zeroStart, zeroEnd). The
// invariant start <= zeroStart <= zeroEnd <= end holds at every
// observable point; IsReal reports zeroStart == zeroEnd.
//
// gen counts mutations (AddAtStart, AddAtEnd, RemoveAtStart,
// RemoveAtEnd) so an Iterator taken before one of them can detect that
// its view moved out from under it.
type View struct {
	storage                        *storage
	start, zeroStart, zeroEnd, end int
	gen                            int
}

// New returns an empty, real view over freshly allocated storage with
// room for capacity bytes of future growth.
func New(capacity int) *View {
	if capacity < 0 {
		capacity = 0
	}
	return &View{storage: newStorage(capacity)}
}

// NewZeroCompressed returns a view of length capacity with a
// zero-compressed window [zeroStart, zeroStart+zeroSize) carved out of
// it, clipped to [0, capacity]. The bytes outside the window are real
// and freshly zero-valued, ready for a caller to fill in a header or
// trailer through an Iterator; the bytes inside it read as zero and
// reject writes until something (growth, Realise) materialises them.
// This is the usual way to build a packet whose payload the simulation
// never actually needs to inspect.
func NewZeroCompressed(capacity, zeroStart, zeroSize int) *View {
	if capacity < 0 {
		capacity = 0
	}
	if zeroStart < 0 {
		zeroStart = 0
	}
	if zeroStart > capacity {
		zeroStart = capacity
	}
	zeroEnd := zeroStart + zeroSize
	if zeroEnd < zeroStart {
		zeroEnd = zeroStart
	}
	if zeroEnd > capacity {
		zeroEnd = capacity
	}

	v := &View{storage: newStorage(capacity), end: capacity, zeroStart: zeroStart, zeroEnd: zeroEnd}
	v.storage.markDirty(0, zeroStart)
	v.storage.markDirty(zeroEnd, capacity)
	return v
}

// Size returns the view's logical length, end - start.
func (v *View) Size() int { return v.end - v.start }

// IsReal reports whether v currently has no zero-compressed window.
func (v *View) IsReal() bool { return v.zeroStart == v.zeroEnd }

// Release drops v's reference to its storage. A View must not be used
// after Release.
func (v *View) Release() { v.storage.release() }

// Clone returns a new view sharing v's storage and geometry, retaining
// one more reference to the storage. Used internally by Fragment; also
// useful at call sites that want two independent cursors over the same
// bytes.
func (v *View) Clone() *View {
	v.storage.retain()
	return &View{storage: v.storage, start: v.start, zeroStart: v.zeroStart, zeroEnd: v.zeroEnd, end: v.end}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AddAtStart grows v by n bytes at the head. The n new bytes are not
// cleared (they hold whatever the storage already had there, zero only
// if nothing wrote them before) and are not part of any zero-compressed
// window; callers write them through an Iterator immediately afterward.
// It tries, in order: adjusting the view's
// offset into existing headroom; moving bytes within storage when v is
// its storage's sole view; reallocating otherwise.
func (v *View) AddAtStart(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 {
		return simerr.New("View.AddAtStart", simerr.CodeInvalidArgument, "negative length")
	}

	if v.start >= n {
		regionStart, regionEnd := v.start-n, v.start
		if v.storage.refcount == 1 || !v.storage.overlapsDirty(regionStart, regionEnd) {
			v.start = regionStart
			v.storage.markDirty(regionStart, regionEnd)
			v.gen++
			return nil
		}
	}

	size := v.Size()
	needed := size + n
	if v.storage.refcount == 1 && needed <= v.storage.capacity() {
		newStart := v.storage.capacity() - size
		v.translateBy(newStart - v.start)
		v.start -= n
		v.storage.markDirty(v.start, v.start+n)
		v.gen++
		return nil
	}

	v.reallocate(n, true)
	v.gen++
	return nil
}

// AddAtEnd is AddAtStart's tail-growth counterpart.
func (v *View) AddAtEnd(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 {
		return simerr.New("View.AddAtEnd", simerr.CodeInvalidArgument, "negative length")
	}

	if v.storage.capacity()-v.end >= n {
		regionStart, regionEnd := v.end, v.end+n
		if v.storage.refcount == 1 || !v.storage.overlapsDirty(regionStart, regionEnd) {
			v.storage.markDirty(regionStart, regionEnd)
			v.end = regionEnd
			v.gen++
			return nil
		}
	}

	size := v.Size()
	needed := size + n
	if v.storage.refcount == 1 && needed <= v.storage.capacity() {
		v.translateBy(-v.start)
		v.storage.markDirty(v.end, v.end+n)
		v.end += n
		v.gen++
		return nil
	}

	v.reallocate(n, false)
	v.gen++
	return nil
}

// translateBy physically shifts v's bytes by delta within its storage
// and moves every geometry field by the same amount. Only safe when v
// is its storage's sole view, which both AddAtStart and AddAtEnd
// already establish before calling it.
func (v *View) translateBy(delta int) {
	if delta == 0 {
		return
	}
	size := v.end - v.start
	if size > 0 {
		tmp := make([]byte, size)
		copy(tmp, v.storage.data[v.start:v.end])
		copy(v.storage.data[v.start+delta:v.end+delta], tmp)
	}
	if v.storage.dirtyStart < v.storage.dirtyEnd {
		v.storage.dirtyStart += delta
		v.storage.dirtyEnd += delta
	}
	v.start += delta
	v.zeroStart += delta
	v.zeroEnd += delta
	v.end += delta
}

// reallocate replaces v's storage with a fresh one sized to hold the
// view's current bytes plus n more, materialising any zero-compressed
// window in the process; always realising on growth is never incorrect,
// only less space-efficient than tracking the window through the copy.
// atStart selects which side of the existing bytes the n new bytes
// land on.
func (v *View) reallocate(n int, atStart bool) {
	size := v.Size()
	newLogical := size + n
	newCap := newLogical * 2
	if newCap < newLogical {
		newCap = newLogical
	}
	ns := newStorage(newCap)
	newStart := (newCap - newLogical) / 2

	contentStart := newStart
	if atStart {
		contentStart = newStart + n
	}
	if size > 0 {
		v.copyLogicalInto(ns.data[contentStart : contentStart+size])
	}

	old := v.storage
	v.storage = ns
	v.start = newStart
	v.end = newStart + newLogical
	v.zeroStart = v.end
	v.zeroEnd = v.end
	ns.markDirty(newStart, v.end)
	old.release()
}

// copyLogicalInto fills dst (len(dst) == v.Size()) with v's logical
// bytes, substituting zero for any compressed window.
func (v *View) copyLogicalInto(dst []byte) {
	headLen := v.zeroStart - v.start
	if headLen > 0 {
		copy(dst[:headLen], v.storage.data[v.start:v.zeroStart])
	}
	tailOffset := v.zeroEnd - v.start
	tailLen := v.end - v.zeroEnd
	if tailLen > 0 {
		copy(dst[tailOffset:tailOffset+tailLen], v.storage.data[v.zeroEnd:v.end])
	}
}

// RemoveAtStart advances start by min(n, Size()). No data moves and no
// reallocation ever happens; crossing into or past
// the zero-compressed window simply advances zeroStart and, if the
// removal goes past it entirely, zeroEnd too.
func (v *View) RemoveAtStart(n int) {
	if n < 0 {
		n = 0
	}
	if size := v.Size(); n > size {
		n = size
	}
	v.start += n
	v.zeroStart = max(v.zeroStart, v.start)
	v.zeroEnd = max(v.zeroEnd, v.zeroStart)
	v.gen++
}

// RemoveAtEnd is RemoveAtStart's tail-shrink counterpart.
func (v *View) RemoveAtEnd(n int) {
	if n < 0 {
		n = 0
	}
	if size := v.Size(); n > size {
		n = size
	}
	v.end -= n
	v.zeroEnd = min(v.zeroEnd, v.end)
	v.zeroStart = min(v.zeroStart, v.zeroEnd)
	v.gen++
}

// Fragment returns a new view over [offset, offset+length) of v's
// logical bytes, clipped to v's own bounds, sharing v's storage without
// copying. The parent and the fragment observe each other's later
// writes to the bytes they still share, exactly as two slices of the
// same backing array would.
func (v *View) Fragment(offset, length int) (*View, error) {
	if offset < 0 || length < 0 {
		return nil, simerr.New("View.Fragment", simerr.CodeInvalidArgument, "negative offset or length")
	}
	newStart := v.start + offset
	newEnd := newStart + length
	if newStart < v.start {
		newStart = v.start
	}
	if newEnd > v.end {
		newEnd = v.end
	}
	if newEnd < newStart {
		newEnd = newStart
	}

	clamp := func(x int) int { return max(newStart, min(x, newEnd)) }

	v.storage.retain()
	return &View{
		storage:   v.storage,
		start:     newStart,
		zeroStart: clamp(v.zeroStart),
		zeroEnd:   clamp(v.zeroEnd),
		end:       newEnd,
	}, nil
}

// Realise returns a view equivalent to v with no zero-compressed
// window: v itself if it is already real, otherwise a new view over
// freshly allocated, exactly-sized storage with the compressed window
// materialised as zero bytes.
func (v *View) Realise() *View {
	if v.IsReal() {
		return v
	}
	size := v.Size()
	ns := newStorage(size)
	v.copyLogicalInto(ns.data[:size])
	ns.markDirty(0, size)
	return &View{storage: ns, start: 0, zeroStart: size, zeroEnd: size, end: size}
}
