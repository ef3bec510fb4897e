package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// AckByte is written by the receiver once a message is framed. Senders
	// only wait for its arrival and never inspect the value.
	AckByte byte = '\n'

	DefaultInitialWords = 1 << 20

	// writeChunkWords bounds the scratch buffer used by WriteFloats.
	writeChunkWords = 32 * 1024

	maxEmptyReads = 100

	// MaxInitialWords caps Options.InitialWords (1 GiB of receive buffer).
	MaxInitialWords = min(1<<27, math.MaxInt/(2*WordSize))

	// MaxMessageBytesLimit caps Options.MaxMessageBytes. It is word aligned
	// and leaves room for the delimiter and one doubling without overflow.
	MaxMessageBytesLimit uint64 = (math.MaxInt / 4) &^ (WordSize - 1)
)

var (
	ErrIncompleteMessage = errors.New("frame: stream ended before message delimiter")
	ErrNoAcknowledgment  = errors.New("frame: stream ended before acknowledgment")
	ErrMessageTooLarge   = errors.New("frame: message too large")
)

// Options tunes the receive side.
type Options struct {
	// InitialWords is the starting receive capacity in float64 words.
	InitialWords int
	// MaxMessageBytes caps the payload size. Zero means unlimited.
	MaxMessageBytes uint64
}

func DefaultOptions() Options {
	return Options{InitialWords: DefaultInitialWords}
}

func (o Options) normalize() Options {
	if o.InitialWords <= 0 {
		o.InitialWords = DefaultInitialWords
	}
	o.InitialWords = min(o.InitialWords, MaxInitialWords)
	o.MaxMessageBytes = min(o.MaxMessageBytes, MaxMessageBytesLimit)
	return o
}

// ReadStats describes the work done by one ReadMessage call.
type ReadStats struct {
	Bytes int
	Reads int
	Grows int
}

// ReadMessage blocks until one High Tension Message has been received from
// rw, acknowledges it and returns the decoded floats. The delimiter is not
// part of the result.
//
// The receive buffer starts at opts.InitialWords and doubles whenever it
// fills before a delimiter is seen. The returned slice is sized exactly to
// the message. After ErrMessageTooLarge the stream is left mid-message and
// should be closed.
func ReadMessage(rw io.ReadWriter, opts Options) ([]float64, ReadStats, error) {
	opts = opts.normalize()
	buf := newRecvBuffer(opts.InitialWords, opts.MaxMessageBytes)

	var stats ReadStats
	empty := 0
	for {
		if buf.full() {
			if err := buf.grow(); err != nil {
				return nil, stats, err
			}
			stats.Grows++
		}

		n, err := rw.Read(buf.tail())
		buf.advance(n)
		stats.Reads++
		if buf.terminated() {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, stats, fmt.Errorf("%w (%d bytes received)", ErrIncompleteMessage, buf.n)
			}
			return nil, stats, fmt.Errorf("frame: read: %w", err)
		}
		if n > 0 {
			empty = 0
			continue
		}
		empty++
		if empty >= maxEmptyReads {
			return nil, stats, fmt.Errorf("frame: read: %w", io.ErrNoProgress)
		}
	}

	if err := acknowledge(rw); err != nil {
		return nil, stats, err
	}
	payload := buf.payload()
	stats.Bytes = len(payload)
	return Floats(payload), stats, nil
}

// WriteFloats writes data to w as raw little-endian words. It does not
// terminate the message; callers may stream one message over several
// calls and finish it with Delimit.
func WriteFloats(w io.Writer, data []float64) error {
	if len(data) == 0 {
		return nil
	}
	scratch := make([]byte, min(len(data), writeChunkWords)*WordSize)
	for len(data) > 0 {
		k := min(len(data), writeChunkWords)
		n := PutFloats(scratch, data[:k])
		if err := writeFull(w, scratch[:n]); err != nil {
			return err
		}
		data = data[k:]
	}
	return nil
}

// Delimit terminates the message in flight and blocks until the peer
// acknowledges it.
func Delimit(rw io.ReadWriter) error {
	if err := writeFull(rw, Sentinel[:]); err != nil {
		return err
	}
	if err := flush(rw); err != nil {
		return err
	}
	var ack [1]byte
	if _, err := io.ReadFull(rw, ack[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNoAcknowledgment
		}
		return fmt.Errorf("frame: read ack: %w", err)
	}
	return nil
}

// WriteMessage sends data as one complete message.
func WriteMessage(rw io.ReadWriter, data []float64) error {
	if err := WriteFloats(rw, data); err != nil {
		return err
	}
	return Delimit(rw)
}

func acknowledge(w io.Writer) error {
	if err := writeFull(w, []byte{AckByte}); err != nil {
		return err
	}
	return flush(w)
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if n < 0 || n > len(p) {
			return fmt.Errorf("frame: write: invalid count %d", n)
		}
		p = p[n:]
		if err != nil {
			return fmt.Errorf("frame: write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("frame: write: %w", io.ErrShortWrite)
		}
	}
	return nil
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return fmt.Errorf("frame: flush: %w", err)
	}
	return nil
}

// recvBuffer accumulates raw words until the delimiter shows up. Its
// capacity is always a multiple of WordSize.
type recvBuffer struct {
	data  []byte
	n     int
	limit int
}

// newRecvBuffer expects values already bounded by Options.normalize.
func newRecvBuffer(words int, maxBytes uint64) *recvBuffer {
	b := &recvBuffer{}
	size := words * WordSize
	if maxBytes > 0 {
		// room for the largest payload plus its delimiter
		b.limit = int(maxBytes/WordSize)*WordSize + WordSize
		size = min(size, b.limit)
	}
	b.data = make([]byte, size)
	return b
}

func (b *recvBuffer) full() bool {
	return b.n == len(b.data)
}

func (b *recvBuffer) tail() []byte {
	return b.data[b.n:]
}

func (b *recvBuffer) advance(n int) {
	if n > 0 {
		b.n += n
	}
}

func (b *recvBuffer) grow() error {
	if len(b.data) > math.MaxInt/2 {
		return ErrMessageTooLarge
	}
	next := 2 * len(b.data)
	if b.limit > 0 {
		if len(b.data) >= b.limit {
			return ErrMessageTooLarge
		}
		next = min(next, b.limit)
	}
	grown := make([]byte, next)
	copy(grown, b.data[:b.n])
	b.data = grown
	return nil
}

// terminated reports whether the last complete word is the delimiter.
func (b *recvBuffer) terminated() bool {
	if b.n < WordSize || b.n%WordSize != 0 {
		return false
	}
	return bytes.Equal(b.data[b.n-WordSize:b.n], Sentinel[:])
}

func (b *recvBuffer) payload() []byte {
	return b.data[:b.n-WordSize]
}
