// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mem provides a frame arena. Everything allocated from an arena stays
// valid until the next call to Reset, after which the memory is reused.
package mem

import (
	"reflect"
	"unsafe"
)

func NewArena() *Arena {
	return &Arena{
		typedSlabs: make(map[reflect.Type][]slab),
	}
}

func New[T any](a *Arena) *T {
	var t *T
	// We cannot use TypeOf(*new(T)) when T is an interface type, because that
	// passes a nil interface to TypeOf, which returns nil.
	typ := reflect.TypeOf(t).Elem()
	return (*T)(a.alloc(typ, 1))
}

func Make[T any](a *Arena, v T) *T {
	ptr := New[T](a)
	*ptr = v
	return ptr
}

func NewSlice[T ~[]E, E any](a *Arena, len, cap int) T {
	if cap == 0 {
		return nil
	}
	var e *E
	ptr := a.alloc(reflect.TypeOf(e).Elem(), cap)
	return T(unsafe.Slice((*E)(ptr), cap)[:len])
}

func MakeSlice[T ~[]E, E any](a *Arena, values T) T {
	// MakeSlice inlines, which means that MakeSlice(a, []T{...}) won't have to
	// allocate to pass the values to us.
	s := NewSlice[T, E](a, len(values), len(values))
	copy(s, values)
	return s
}

// Bytes returns n zeroed bytes aligned to align, which must be a power of two
// no larger than 8. Bytes come from pointer-free slabs, so callers may
// reinterpret them as slices of pointer-free types.
func Bytes(a *Arena, n int, align uint8) []byte {
	if n == 0 {
		return nil
	}
	ptr := a.allocBytes(n, align)
	return unsafe.Slice((*byte)(ptr), n)
}

func Append[T ~[]E, E any](a *Arena, s T, data ...E) T {
	s = growSlice(a, s, len(data))
	s = append(s, data...)
	return s
}

func Grow[T ~[]E, E any](a *Arena, s T, n int) T {
	if n -= cap(s) - len(s); n > 0 {
		s = growSlice(a, s, n)
	}
	return s
}

func growSlice[T ~[]E, E any](a *Arena, s T, n int) T {
	const growThreshold = 256
	newLen := len(s) + n
	newCap := cap(s)

	if newCap > 0 {
		for newLen > newCap {
			if newCap < growThreshold {
				newCap *= 2
			} else {
				newCap += newCap / 4
			}
		}
	} else {
		newCap = n
	}
	if newCap == cap(s) {
		return s
	}
	s2 := NewSlice[T, E](a, len(s), newCap)
	copy(s2, s)
	return s2
}

type Arena struct {
	byteSlabs  []slab
	typedSlabs map[reflect.Type][]slab
}

// Stats describes an arena's memory use since the last Reset.
type Stats struct {
	Slabs int
	// Capacity and InUse are in bytes.
	Capacity int
	InUse    int
}

const slabSize = 1024 * 1024

type rtype struct {
	size      int
	ptrPrefix int
	_         uint32
	_         uint8
	align     uint8
}

func typeLayout(typ reflect.Type) *rtype {
	type iface struct {
		_    unsafe.Pointer
		rtyp *rtype
	}
	return (*iface)(unsafe.Pointer(&typ)).rtyp
}

func (a *Arena) alloc(typ reflect.Type, num int) unsafe.Pointer {
	rtyp := typeLayout(typ)
	// rtyp.size already includes padding
	totalSize := num * rtyp.size
	if rtyp.ptrPrefix == 0 {
		return a.allocBytes(totalSize, rtyp.align)
	}

	if a.typedSlabs == nil {
		a.typedSlabs = make(map[reflect.Type][]slab)
	}
	slabs := a.typedSlabs[typ]
	// OPT(dh): skip full slabs
	for i := range slabs {
		sl := &slabs[i]
		off := align(sl.offset, rtyp.align)
		if sl.size-off >= totalSize {
			sl.offset = off + totalSize
			// No need to zero memory here, we do it for typed slabs when
			// resetting the arena.
			return unsafe.Add(sl.data, off)
		}
	}
	// Need a new slab. Allocations that don't fit a regular slab get a slab
	// of their own.
	n := max(slabSize/rtyp.size, num)
	ptr := reflect.MakeSlice(reflect.SliceOf(typ), n, n).UnsafePointer()
	a.typedSlabs[typ] = append(slabs, slab{
		data:   ptr,
		size:   n * rtyp.size,
		offset: totalSize,
	})
	return ptr
}

func (a *Arena) allocBytes(totalSize int, alignment uint8) unsafe.Pointer {
	// OPT(dh): skip full slabs
	for i := range a.byteSlabs {
		sl := &a.byteSlabs[i]
		off := align(sl.offset, alignment)
		if sl.size-off >= totalSize {
			sl.offset = off + totalSize
			ptr := unsafe.Add(sl.data, off)
			// Return zeroed memory
			clear(unsafe.Slice((*byte)(ptr), totalSize))
			return ptr
		}
	}
	// Need a new slab. Slab memory comes from []uint64 so that it is 8 byte
	// aligned.
	size := max(slabSize, align(totalSize, 8))
	a.byteSlabs = append(a.byteSlabs, slab{
		data:   unsafe.Pointer(unsafe.SliceData(make([]uint64, size/8))),
		size:   size,
		offset: totalSize,
	})
	return a.byteSlabs[len(a.byteSlabs)-1].data
}

// to has to be a power of two.
func align(v int, to uint8) int {
	return v + (-v & (int(to) - 1))
}

func (a *Arena) Reset() {
	if a.typedSlabs == nil {
		a.typedSlabs = make(map[reflect.Type][]slab)
	}
	for i := range a.byteSlabs {
		a.byteSlabs[i].offset = 0
	}
	for _, slabs := range a.typedSlabs {
		for i := range slabs {
			slab := &slabs[i]
			// Clear memory so it doesn't keep Go pointers alive
			clear(unsafe.Slice((*byte)(slab.data), slab.offset))
			slab.offset = 0
		}
	}
}

func (a *Arena) Stats() Stats {
	var st Stats
	add := func(sl slab) {
		st.Slabs++
		st.Capacity += sl.size
		st.InUse += sl.offset
	}
	for _, sl := range a.byteSlabs {
		add(sl)
	}
	for _, slabs := range a.typedSlabs {
		for _, sl := range slabs {
			add(sl)
		}
	}
	return st
}

type slab struct {
	data unsafe.Pointer
	// size and offset are in bytes.
	size   int
	offset int
}
