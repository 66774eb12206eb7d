// internal/heap/pool.go

package heap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// Granule is the allocation unit; every block is a multiple of it.
const Granule = 8

var (
	ErrZeroSize  = errors.New("heap: zero-size allocation")
	ErrExhausted = errors.New("heap: pool exhausted")
	ErrBadFree   = errors.New("heap: block not allocated from this pool")
)

// Block is a region handed out by Pool.Alloc.
type Block struct {
	off  int
	size int    // rounded size owned in the arena
	data []byte // caller-visible bytes, len == requested size
}

// Bytes returns the usable bytes of the block.
func (b Block) Bytes() []byte { return b.data }

// Len returns the requested length.
func (b Block) Len() int { return len(b.data) }

// Stats is a snapshot of pool usage.
type Stats struct {
	Total       int
	Used        int
	Free        int
	FreeBlocks  int
	LargestFree int
}

// Pool is a fixed-size first-fit allocator over a single arena.
// Free blocks live in a red-black tree ordered by offset so Kick can merge
// neighbours in one ordered walk.
type Pool struct {
	mu    sync.Mutex
	arena []byte
	free  *redblacktree.Tree // offset -> size
	used  map[int]int        // offset -> size
}

// New creates a pool of size bytes (rounded down to the granule) and
// initialises it.
func New(size int) *Pool {
	size -= size % Granule
	if size < Granule {
		size = Granule
	}
	p := &Pool{arena: make([]byte, size)}
	p.Init()
	return p
}

// Init discards every allocation and leaves a single free block.
func (p *Pool) Init() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = redblacktree.NewWith(utils.IntComparator)
	p.free.Put(0, len(p.arena))
	p.used = make(map[int]int)
}

// Alloc reserves n bytes. When no free block fits, adjacent free blocks are
// merged once and the search is retried.
func (p *Pool) Alloc(n int) (Block, error) {
	if n <= 0 {
		return Block{}, ErrZeroSize
	}
	size := roundUp(n)

	p.mu.Lock()
	defer p.mu.Unlock()

	off, ok := p.firstFit(size)
	if !ok {
		p.coalesce()
		if off, ok = p.firstFit(size); !ok {
			return Block{}, fmt.Errorf("alloc %d bytes: %w", n, ErrExhausted)
		}
	}

	blockSize, _ := p.free.Get(off)
	p.free.Remove(off)
	if rest := blockSize.(int) - size; rest > 0 {
		p.free.Put(off+size, rest)
	}
	p.used[off] = size

	data := p.arena[off : off+n : off+n]
	clear(data)
	return Block{off: off, size: size, data: data}, nil
}

// Free returns b to the pool. Neighbouring free blocks are not merged until
// the next Kick or a failed Alloc.
func (p *Pool) Free(b Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	size, ok := p.used[b.off]
	if !ok || size != b.size || b.data == nil {
		return ErrBadFree
	}
	delete(p.used, b.off)
	p.free.Put(b.off, size)
	return nil
}

// Kick merges adjacent free blocks and reports how many merges happened.
func (p *Pool) Kick() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coalesce()
}

// Stats reports current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{Total: len(p.arena), FreeBlocks: p.free.Size()}
	for _, size := range p.used {
		st.Used += size
	}
	it := p.free.Iterator()
	for it.Next() {
		size := it.Value().(int)
		st.Free += size
		if size > st.LargestFree {
			st.LargestFree = size
		}
	}
	return st
}

func (p *Pool) firstFit(size int) (int, bool) {
	it := p.free.Iterator()
	for it.Next() {
		if it.Value().(int) >= size {
			return it.Key().(int), true
		}
	}
	return 0, false
}

func (p *Pool) coalesce() int {
	merged := 0
	next := redblacktree.NewWith(utils.IntComparator)
	curOff, curSize := -1, 0

	it := p.free.Iterator()
	for it.Next() {
		off, size := it.Key().(int), it.Value().(int)
		switch {
		case curOff < 0:
			curOff, curSize = off, size
		case curOff+curSize == off:
			curSize += size
			merged++
		default:
			next.Put(curOff, curSize)
			curOff, curSize = off, size
		}
	}
	if curOff >= 0 {
		next.Put(curOff, curSize)
	}
	p.free = next
	return merged
}

func roundUp(n int) int {
	return (n + Granule - 1) &^ (Granule - 1)
}
