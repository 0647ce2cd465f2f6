// Package sparse implements a generation-tagged slot store, the Go
// counterpart of the original renderer's SparseStorage<T>: slots are
// reused after removal, and every reuse bumps a generation counter so a
// handle captured before the removal is rejected instead of silently
// resolving to the new occupant.
package sparse

import "github.com/prism-renderer/prism/internal/handle"

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Store is a generic generation-tagged slot array.
type Store[T any] struct {
	slots     []slot[T]
	freeList  []uint32
	liveCount int
}

// New returns an empty store.
func New[T any]() *Store[T] {
	return &Store[T]{}
}

// Add inserts a value into a free slot (reusing one from the free list
// when available) and returns a handle addressing it.
func (s *Store[T]) Add(v T) handle.Handle {
	var idx uint32
	if n := len(s.freeList); n > 0 {
		idx = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.slots[idx].value = v
		s.slots[idx].occupied = true
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot[T]{value: v, occupied: true})
	}
	s.liveCount++
	return handle.New(idx+1, s.slots[idx].generation)
}

// Get resolves a handle to its stored value. ok is false if the handle is
// invalid, out of range, or stale (its generation was superseded by a
// Remove followed by reuse).
func (s *Store[T]) Get(h handle.Handle) (v T, ok bool) {
	idx, gen, valid := s.resolve(h)
	if !valid {
		return v, false
	}
	slot := &s.slots[idx]
	if !slot.occupied || slot.generation != gen {
		return v, false
	}
	return slot.value, true
}

// Set overwrites the value addressed by a valid, live handle.
func (s *Store[T]) Set(h handle.Handle, v T) bool {
	idx, gen, valid := s.resolve(h)
	if !valid {
		return false
	}
	slot := &s.slots[idx]
	if !slot.occupied || slot.generation != gen {
		return false
	}
	slot.value = v
	return true
}

// Remove frees the slot addressed by h, bumping its generation so any
// previously issued handle to it becomes stale, and returns whether
// anything was actually removed.
func (s *Store[T]) Remove(h handle.Handle) bool {
	idx, gen, valid := s.resolve(h)
	if !valid {
		return false
	}
	slot := &s.slots[idx]
	if !slot.occupied || slot.generation != gen {
		return false
	}
	var zero T
	slot.value = zero
	slot.occupied = false
	slot.generation++
	s.freeList = append(s.freeList, idx)
	s.liveCount--
	return true
}

func (s *Store[T]) resolve(h handle.Handle) (idx uint32, generation uint32, ok bool) {
	if !h.Valid() {
		return 0, 0, false
	}
	oneBased := h.Index()
	if oneBased == 0 || int(oneBased) > len(s.slots) {
		return 0, 0, false
	}
	return oneBased - 1, h.Generation(), true
}

// Len returns the number of currently occupied slots.
func (s *Store[T]) Len() int {
	return s.liveCount
}

// Each calls fn for every occupied slot's handle and value, in slot
// order, until fn returns false.
func (s *Store[T]) Each(fn func(h handle.Handle, v T) bool) {
	for i := range s.slots {
		if !s.slots[i].occupied {
			continue
		}
		h := handle.New(uint32(i)+1, s.slots[i].generation)
		if !fn(h, s.slots[i].value) {
			return
		}
	}
}
