package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danmuck/hitension/internal/observability"
	"github.com/danmuck/hitension/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var ErrInvalidText = errors.New("session: text message must be valid utf-8 without newlines")

// Conn carries both message kinds over one net.Conn. Text lines and float
// messages go through the same buffered reader, so switching between them
// never drops bytes. A Conn is not safe for concurrent use; the protocol is
// strictly sequential per stream. A cancelled float message may leave the
// stream mid-frame, so the Conn should be closed after one.
type Conn struct {
	raw     net.Conn
	cfg     Config
	rw      *bufio.ReadWriter
	pending int
	started time.Time
}

func NewConn(raw net.Conn, cfg Config) *Conn {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Conn{
		raw: raw,
		cfg: cfg,
		rw:  bufio.NewReadWriter(bufio.NewReaderSize(raw, size), bufio.NewWriterSize(raw, size)),
	}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.raw.Close()
}

// ReadMessage receives one High Tension Message and acknowledges it.
func (c *Conn) ReadMessage(ctx context.Context) ([]float64, error) {
	done := c.guard(ctx, c.cfg.ReadTimeout)
	start := time.Now()
	data, stats, err := frame.ReadMessage(c.rw, c.cfg.Frame)
	if err = done(err); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	observability.RecordMessage(observability.DirectionReceived, stats.Bytes, stats.Grows, elapsed)
	log.Debug().
		Str("remote", c.raw.RemoteAddr().String()).
		Int("words", len(data)).
		Int("reads", stats.Reads).
		Int("grows", stats.Grows).
		Dur("duration", elapsed).
		Msg("message received")
	return data, nil
}

// WriteFloats streams part of the message in flight.
func (c *Conn) WriteFloats(ctx context.Context, data []float64) error {
	if c.started.IsZero() {
		c.started = time.Now()
	}
	done := c.guard(ctx, c.cfg.WriteTimeout)
	if err := done(frame.WriteFloats(c.rw, data)); err != nil {
		return err
	}
	c.pending += len(data) * frame.WordSize
	return nil
}

// Delimit ends the message in flight and waits for the peer's acknowledgment.
func (c *Conn) Delimit(ctx context.Context) error {
	if c.started.IsZero() {
		c.started = time.Now()
	}
	sent, started := c.pending, c.started
	c.pending, c.started = 0, time.Time{}

	done := c.guard(ctx, c.cfg.AckTimeout)
	if err := done(frame.Delimit(c.rw)); err != nil {
		return err
	}
	elapsed := time.Since(started)
	observability.RecordMessage(observability.DirectionSent, sent, 0, elapsed)
	log.Debug().
		Str("remote", c.raw.RemoteAddr().String()).
		Int("bytes", sent).
		Dur("duration", elapsed).
		Msg("message acknowledged")
	return nil
}

// Send writes data as one complete message.
func (c *Conn) Send(ctx context.Context, data []float64) error {
	if err := c.WriteFloats(ctx, data); err != nil {
		return err
	}
	return c.Delimit(ctx)
}

// ReadLine returns the next Simple Text Message without its line ending.
func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	done := c.guard(ctx, c.cfg.ReadTimeout)
	line, err := c.rw.ReadString('\n')
	if err = done(err); err != nil {
		return "", err
	}
	observability.RecordTextLine(observability.DirectionReceived)
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// WriteLine sends text as one Simple Text Message.
func (c *Conn) WriteLine(ctx context.Context, text string) error {
	if strings.ContainsRune(text, '\n') || !utf8.ValidString(text) {
		return ErrInvalidText
	}
	done := c.guard(ctx, c.cfg.WriteTimeout)
	_, err := c.rw.WriteString(text + "\n")
	if err == nil {
		err = c.rw.Flush()
	}
	if err = done(err); err != nil {
		return err
	}
	observability.RecordTextLine(observability.DirectionSent)
	return nil
}

// WriteLinef formats and sends one Simple Text Message.
func (c *Conn) WriteLinef(ctx context.Context, format string, args ...any) error {
	return c.WriteLine(ctx, fmt.Sprintf(format, args...))
}

// guard bounds one blocking operation by ctx and timeout. The returned func
// must be called with the operation's error; it releases the ctx watcher
// and reports ctx.Err() when cancellation caused the failure.
func (c *Conn) guard(ctx context.Context, timeout time.Duration) func(error) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.raw.SetDeadline(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.raw.SetDeadline(time.Unix(1, 0))
		close(fired)
	})
	return func(err error) error {
		if !stop() {
			// the expired deadline must land before the next operation sets its own
			<-fired
		}
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
}
