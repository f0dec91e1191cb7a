// Package surface owns the reusable text surfaces panels are textured with:
// a pool bucketed by line capacity and the renderer that paints post text onto them.
package surface

import (
	"errors"
	"fmt"
)

const (
	MinLines = 1
	MaxLines = 10
)

var (
	// ErrOutOfRange is returned when a line count falls outside [MinLines, MaxLines]
	ErrOutOfRange = errors.New("line count out of range")
	// ErrSaturated is returned when a bucket reached its high-water mark with nothing free
	ErrSaturated = errors.New("pool saturated")
)

// Surface is a reusable text texture with a fixed line capacity
type Surface struct {
	ID     uint64
	Lines  int
	Canvas Canvas
}

// PoolOptions configures surface dimensions and growth
type PoolOptions struct {
	Width      int
	LineHeight int
	// MaxPerBucket caps how many surfaces one bucket may hold, 0 means unbounded
	MaxPerBucket int
	NewCanvas    CanvasFunc
}

// BucketStats is a read-only snapshot of one bucket
type BucketStats struct {
	Lines int
	Free  int
	InUse int
}

// Pool hands out surfaces keyed by line capacity. Buckets grow lazily to the
// high-water mark of concurrent demand and are only shrunk by Cleanup.
// A Pool must only be used from one goroutine.
type Pool struct {
	opts    PoolOptions
	buckets [MaxLines + 1][]*Surface
	inUse   map[*Surface]struct{}
	nextID  uint64
}

// NewPool creates an empty pool
func NewPool(opts PoolOptions) *Pool {
	if opts.NewCanvas == nil {
		opts.NewCanvas = NewImageCanvas
	}
	return &Pool{
		opts:  opts,
		inUse: make(map[*Surface]struct{}),
	}
}

// Width returns the pixel width shared by every surface
func (p *Pool) Width() int {
	return p.opts.Width
}

// LineHeight returns the pixel height of one line
func (p *Pool) LineHeight() int {
	return p.opts.LineHeight
}

// Acquire returns a cleared surface able to hold lines lines, reusing a free
// one from the bucket when possible.
func (p *Pool) Acquire(lines int) (*Surface, error) {
	if lines < MinLines || lines > MaxLines {
		return nil, fmt.Errorf("acquire %d lines (want %d..%d): %w", lines, MinLines, MaxLines, ErrOutOfRange)
	}

	for _, s := range p.buckets[lines] {
		if _, busy := p.inUse[s]; busy {
			continue
		}
		p.inUse[s] = struct{}{}
		s.Canvas.Clear()
		return s, nil
	}

	if p.opts.MaxPerBucket > 0 && len(p.buckets[lines]) >= p.opts.MaxPerBucket {
		return nil, fmt.Errorf("acquire %d lines: %d surfaces busy: %w", lines, len(p.buckets[lines]), ErrSaturated)
	}

	p.nextID++
	s := &Surface{
		ID:     p.nextID,
		Lines:  lines,
		Canvas: p.opts.NewCanvas(p.opts.Width, lines*p.opts.LineHeight),
	}
	p.buckets[lines] = append(p.buckets[lines], s)
	p.inUse[s] = struct{}{}
	return s, nil
}

// Release returns s to its bucket. Releasing nil, a free surface or a foreign
// surface is a no-op.
func (p *Pool) Release(s *Surface) {
	if s == nil {
		return
	}
	delete(p.inUse, s)
}

// InUse reports whether s is currently loaned out
func (p *Pool) InUse(s *Surface) bool {
	_, ok := p.inUse[s]
	return ok
}

// Cleanup disposes every free surface and keeps only those still in use.
// Meant for teardown; later acquires rebuild the free inventory.
func (p *Pool) Cleanup() {
	for lines := MinLines; lines <= MaxLines; lines++ {
		kept := p.buckets[lines][:0]
		for _, s := range p.buckets[lines] {
			if _, busy := p.inUse[s]; busy {
				kept = append(kept, s)
				continue
			}
			s.Canvas.Dispose()
		}
		clear(p.buckets[lines][len(kept):])
		p.buckets[lines] = kept
	}
}

// FreeCount returns the number of free surfaces in a bucket
func (p *Pool) FreeCount(lines int) int {
	if lines < MinLines || lines > MaxLines {
		return 0
	}
	return len(p.buckets[lines]) - p.InUseCount(lines)
}

// InUseCount returns the number of loaned surfaces in a bucket
func (p *Pool) InUseCount(lines int) int {
	if lines < MinLines || lines > MaxLines {
		return 0
	}
	n := 0
	for _, s := range p.buckets[lines] {
		if _, busy := p.inUse[s]; busy {
			n++
		}
	}
	return n
}

// TotalActive returns the number of surfaces on loan across all buckets
func (p *Pool) TotalActive() int {
	return len(p.inUse)
}

// TotalSize returns the number of surfaces the pool holds
func (p *Pool) TotalSize() int {
	n := 0
	for lines := MinLines; lines <= MaxLines; lines++ {
		n += len(p.buckets[lines])
	}
	return n
}

// Stats snapshots every non-empty bucket
func (p *Pool) Stats() []BucketStats {
	var out []BucketStats
	for lines := MinLines; lines <= MaxLines; lines++ {
		if len(p.buckets[lines]) == 0 {
			continue
		}
		busy := p.InUseCount(lines)
		out = append(out, BucketStats{
			Lines: lines,
			Free:  len(p.buckets[lines]) - busy,
			InUse: busy,
		})
	}
	return out
}
