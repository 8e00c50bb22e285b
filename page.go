package kthread

import (
	"encoding/binary"
	"sync"
)

// PageSize is the simulated page size backing a ThreadBlock plus its
// stack, standing in for the real page allocator's contract (spec §1):
// "page-aligned, page-sized zeroed block used as thread storage + stack".
const PageSize = 4096

// magicOffset is the fixed offset within a page at which the canary word
// lives (spec §4.1).
const magicOffset = 0

// Page is the zero-filled block a PageAllocator hands out. Allocation is
// out of scope per spec §1; this type only exists so Current()'s
// canary-based discovery story has somewhere concrete to check, per the
// §9 design note's "arena of ThreadBlocks" adaptation.
type Page struct {
	bytes [PageSize]byte
}

// Magic reads the canary word at the fixed offset.
func (p *Page) Magic() uint32 {
	return binary.LittleEndian.Uint32(p.bytes[magicOffset : magicOffset+4])
}

// SetMagic writes the canary word at the fixed offset.
func (p *Page) SetMagic(v uint32) {
	binary.LittleEndian.PutUint32(p.bytes[magicOffset:magicOffset+4], v)
}

// Corrupt deliberately clobbers the canary, for exercising the
// stack-overflow assertion in tests.
func (p *Page) Corrupt() {
	binary.LittleEndian.PutUint32(p.bytes[magicOffset:magicOffset+4], 0)
}

// PageAllocator is the out-of-scope collaborator from spec §1: "page
// allocator producing a page-aligned, page-sized zeroed block used as
// thread storage + stack". Alloc must zero-fill the returned page.
type PageAllocator interface {
	Alloc() (*Page, error)
	Free(*Page)
}

// pooledPageAllocator is the default PageAllocator: a sync.Pool-backed
// free list bounded by an optional hard cap, realizing the
// resource-exhaustion failure kind of spec §7 (ErrNoFreePages).
type pooledPageAllocator struct {
	pool     sync.Pool
	mu       sync.Mutex
	max      int
	outstand int
}

// NewPageAllocator returns the default PageAllocator. max<=0 means
// unbounded.
func NewPageAllocator(max int) PageAllocator {
	return &pooledPageAllocator{
		max: max,
		pool: sync.Pool{
			New: func() any { return new(Page) },
		},
	}
}

func (a *pooledPageAllocator) Alloc() (*Page, error) {
	a.mu.Lock()
	if a.max > 0 && a.outstand >= a.max {
		a.mu.Unlock()
		return nil, ErrNoFreePages
	}
	a.outstand++
	a.mu.Unlock()

	p := a.pool.Get().(*Page)
	*p = Page{} // zero-fill, matching the allocator's contract
	return p, nil
}

func (a *pooledPageAllocator) Free(p *Page) {
	a.mu.Lock()
	a.outstand--
	a.mu.Unlock()
	a.pool.Put(p)
}
