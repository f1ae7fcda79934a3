package netio

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPoolExhausted indicates a frame was requested while every slot in
// the Pool was already checked out.
var ErrPoolExhausted = errors.New("umem pool exhausted")

// Pool is a fixed-size arena of equally sized frame buffers, the shared
// allocator behind the kernel-bypass backend's UMEM and usable standalone
// by the raw-socket backend to avoid per-packet allocation. Frames are
// obtained with Get and returned with Put; Put on a frame not obtained
// from this Pool corrupts the free list and is a programming error.
type Pool struct {
	mu        sync.Mutex
	arena     []byte
	frameSize int
	free      []uint32 // indices of unused frames
	total     int
}

// NewPool allocates count frames of frameSize bytes each in one
// contiguous arena (the layout a real UMEM registration requires: one
// mmap'd region sliced into fixed strides).
func NewPool(count, frameSize int) (*Pool, error) {
	if count <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("umem pool: count=%d frameSize=%d must be positive", count, frameSize)
	}
	p := &Pool{
		arena:     make([]byte, count*frameSize),
		frameSize: frameSize,
		free:      make([]uint32, count),
		total:     count,
	}
	for i := range p.free {
		p.free[i] = uint32(i)
	}
	return p, nil
}

// Get checks out one frame, returning its backing slice and an opaque
// index to pass back to Put. It returns ErrPoolExhausted if every frame
// is currently checked out.
func (p *Pool) Get() (buf []byte, index uint32, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, 0, ErrPoolExhausted
	}
	n := len(p.free) - 1
	index = p.free[n]
	p.free = p.free[:n]

	off := int(index) * p.frameSize
	return p.arena[off : off+p.frameSize : off+p.frameSize], index, nil
}

// Put returns a previously checked-out frame to the free list.
func (p *Pool) Put(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, index)
}

// Frame returns the backing slice for a given index without checking it
// out, used by backends translating ring descriptors back to buffers.
func (p *Pool) Frame(index uint32) []byte {
	off := int(index) * p.frameSize
	return p.arena[off : off+p.frameSize : off+p.frameSize]
}

// Stats reports outstanding (checked-out) and free frame counts.
type Stats struct {
	Total       int
	Free        int
	Outstanding int
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := len(p.free)
	return Stats{Total: p.total, Free: free, Outstanding: p.total - free}
}

// FillHalf returns the indices of half the pool's frames, in order,
// for pre-populating a kernel-bypass backend's fill ring at init time.
func (p *Pool) FillHalf() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.total / 2
	out := make([]uint32, 0, n)
	for len(out) < n && len(p.free) > 0 {
		last := len(p.free) - 1
		out = append(out, p.free[last])
		p.free = p.free[:last]
	}
	return out
}
