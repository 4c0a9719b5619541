package renderer

import (
	"fmt"
	"hash/maphash"

	"github.com/gogpu/gputypes"
	"honnef.co/go/safeish"

	"honnef.co/go/render2d/gfx"
)

// styleTable deduplicates text styles within one flush window. Styles are
// keyed by the hash of their bytes; two distinct styles with the same hash
// share an entry.
type styleTable struct {
	seed     maphash.Seed
	mapping  map[uint64]uint32
	data     []gfx.TextStyle
	capacity int

	// The most recently selected style. It survives resets and is
	// reinserted when the next font command needs it.
	current    gfx.TextStyle
	currentIdx uint32
	valid      bool
}

func newStyleTable(capacity int) styleTable {
	return styleTable{
		seed:     maphash.MakeSeed(),
		mapping:  make(map[uint64]uint32, capacity),
		data:     make([]gfx.TextStyle, 0, capacity),
		capacity: capacity,
	}
}

func (st *styleTable) hash(s *gfx.TextStyle) uint64 {
	return maphash.Bytes(st.seed, safeish.AsBytes(s))
}

// lookup returns the index of s if an entry with the same hash exists.
func (st *styleTable) lookup(h uint64) (uint32, bool) {
	idx, ok := st.mapping[h]
	return idx, ok
}

func (st *styleTable) full() bool { return len(st.data) == st.capacity }

func (st *styleTable) insert(h uint64, s gfx.TextStyle) uint32 {
	if st.full() {
		panic("inserting into full style table")
	}
	idx := uint32(len(st.data))
	st.data = append(st.data, s)
	st.mapping[h] = idx
	return idx
}

func (st *styleTable) at(idx uint32) *gfx.TextStyle {
	return &st.data[idx]
}

func (st *styleTable) len() int { return len(st.data) }

func (st *styleTable) bytes() []byte {
	return safeish.SliceCast[[]byte](st.data)
}

// styleTable copies the table to the device on first use within a flush.
func (b *Batcher) styleTable() BufferSlice {
	if b.styleSlice.Count == 0 && b.styles.len() > 0 {
		data, slice := b.dev.Allocate(gputypes.BufferUsageUniform, styleSize, b.styles.len())
		copy(data, b.styles.bytes())
		b.styleSlice = slice
	}
	return b.styleSlice
}

func (st *styleTable) reset() {
	clear(st.mapping)
	st.data = st.data[:0]
	st.valid = false
}

// SelectStyle makes s the style of subsequently created font commands and
// returns its index in the style table. Selecting a style equal to one
// already in the table returns the existing index. When the table is full,
// pending commands are flushed first and s ends up at index 0. A table
// without pending commands is emptied without counting as a flush.
func (b *Batcher) SelectStyle(s gfx.TextStyle) uint32 {
	if b.state == stateFlushing {
		panic("SelectStyle called during Flush")
	}
	st := &b.styles
	h := st.hash(&s)
	idx, ok := st.lookup(h)
	if !ok {
		if st.full() {
			if b.pool.n > 0 {
				logger().Debug("style table full, flushing", "capacity", st.capacity)
				b.stats.ImplicitFlushes++
				b.Flush()
			} else {
				// Nothing refers to the table yet.
				st.reset()
			}
		}
		idx = st.insert(h, s)
	}
	st.current = s
	st.currentIdx = idx
	st.valid = true
	return idx
}

// CurrentStyle returns the table index of the current style, inserting it
// into the table if a flush has emptied it since it was selected. Without a
// prior call to SelectStyle, the current style is gfx.DefaultTextStyle.
func (b *Batcher) CurrentStyle() uint32 {
	if !b.styles.valid {
		return b.SelectStyle(b.styles.current)
	}
	return b.styles.currentIdx
}

// Style returns the style stored at idx.
func (b *Batcher) Style(idx uint32) gfx.TextStyle {
	if int(idx) >= b.styles.len() {
		panic(fmt.Sprintf("style index %d out of range [0, %d)", idx, b.styles.len()))
	}
	return *b.styles.at(idx)
}
