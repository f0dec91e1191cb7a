// Package capture records raw stream frames into lz4-compressed files and plays
// them back, so a session of the upstream feed can be replayed offline.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4"
)

const (
	magic = "FTCAP1\n"
	// MaxFrameSize bounds a single frame read back from disk
	MaxFrameSize = 16 << 20
)

var (
	ErrBadMagic      = errors.New("not a capture file")
	ErrFrameTooLarge = errors.New("capture frame too large")
	ErrClosed        = errors.New("capture closed")
)

// Frame is one recorded message and when it arrived relative to the start
type Frame struct {
	Offset time.Duration
	Data   []byte
}

// Writer appends frames to an lz4 stream. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	zw     *lz4.Writer
	closer io.Closer
	start  time.Time
	now    func() time.Time
	hdr    [2 * binary.MaxVarintLen64]byte
	wrote  bool
	closed bool
}

// NewWriter starts a capture on w. Closing the Writer does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:  lz4.NewWriter(w),
		now: time.Now,
	}
}

// Create starts a capture in a new file at path
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// WriteFrame records data with the time elapsed since the first frame
func (w *Writer) WriteFrame(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if !w.wrote {
		if _, err := io.WriteString(w.zw, magic); err != nil {
			return err
		}
		w.start = w.now()
		w.wrote = true
	}

	offset := w.now().Sub(w.start)
	if offset < 0 {
		offset = 0
	}
	n := binary.PutUvarint(w.hdr[:], uint64(offset/time.Millisecond))
	n += binary.PutUvarint(w.hdr[n:], uint64(len(data)))
	if _, err := w.zw.Write(w.hdr[:n]); err != nil {
		return err
	}
	_, err := w.zw.Write(data)
	return err
}

// Close flushes the lz4 stream and closes the file if the Writer owns one.
// Later writes fail with ErrClosed and later Closes are no-ops.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if !w.wrote {
		if _, err := io.WriteString(w.zw, magic); err != nil {
			return err
		}
		w.wrote = true
	}
	err := w.zw.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader reads frames back in recording order
type Reader struct {
	br      *bufio.Reader
	closer  io.Closer
	checked bool
}

// NewReader reads a capture from r
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(lz4.NewReader(r))}
}

// Open reads the capture file at path
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next frame, or io.EOF after the last one
func (r *Reader) Next() (Frame, error) {
	if !r.checked {
		head := make([]byte, len(magic))
		if _, err := io.ReadFull(r.br, head); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, ErrBadMagic
			}
			return Frame{}, err
		}
		if string(head) != magic {
			return Frame{}, ErrBadMagic
		}
		r.checked = true
	}

	ms, err := binary.ReadUvarint(r.br)
	if err != nil {
		return Frame{}, err // io.EOF on a clean end
	}
	size, err := binary.ReadUvarint(r.br)
	if err != nil {
		return Frame{}, unexpected(err)
	}
	if size > MaxFrameSize {
		return Frame{}, fmt.Errorf("frame of %d bytes: %w", size, ErrFrameTooLarge)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return Frame{}, unexpected(err)
	}
	return Frame{Offset: time.Duration(ms) * time.Millisecond, Data: data}, nil
}

// Close closes the underlying file if the Reader owns one
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
