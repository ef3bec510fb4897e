package session

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/danmuck/hitension/internal/protocol/frame"
	"github.com/danmuck/hitension/internal/testutil/testlog"
	"github.com/danmuck/hitension/internal/testutil/tlstest"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 0.5, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for attempt := 2; attempt < 20; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("attempt%d outside jitter window: %v", attempt, got)
		}
	}
}

func TestTransportValidation(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("plain client rejected: %v", err)
	}
	if err := cfg.ValidateServerTransport(); err != nil {
		t.Fatalf("plain server rejected: %v", err)
	}

	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS = TLSConfig{Enabled: true}
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS = TLSConfig{Enabled: true, Mutual: true, CAFile: "ca.crt", CertFile: "c.crt"}
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}
}

func pipeConns(t *testing.T, cfg Config) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	ca, cb := NewConn(a, cfg), NewConn(b, cfg)
	t.Cleanup(func() {
		_ = ca.Close()
		_ = cb.Close()
	})
	return ca, cb
}

func TestConnInterleavesTextAndMessages(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Frame.InitialWords = 2
	client, server := pipeConns(t, cfg)

	in := []float64{1.5, math.Copysign(0, -1), 3.4e10}
	errc := make(chan error, 1)
	go func() {
		if err := client.WriteLine(ctx, "sum"); err != nil {
			errc <- err
			return
		}
		if err := client.WriteFloats(ctx, in[:1]); err != nil {
			errc <- err
			return
		}
		if err := client.WriteFloats(ctx, in[1:]); err != nil {
			errc <- err
			return
		}
		errc <- client.Delimit(ctx)
	}()

	cmd, err := server.ReadLine(ctx)
	if err != nil || cmd != "sum" {
		t.Fatalf("read command: cmd=%q err=%v", cmd, err)
	}
	got, err := server.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("client send: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("length mismatch: %v", got)
	}
	for i := range in {
		if math.Float64bits(got[i]) != math.Float64bits(in[i]) {
			t.Fatalf("word %d mismatch: %v vs %v", i, got[i], in[i])
		}
	}

	go func() { errc <- server.WriteLine(ctx, "ok 3\r") }()
	reply, err := client.ReadLine(ctx)
	if err != nil || reply != "ok 3" {
		t.Fatalf("read reply: reply=%q err=%v", reply, err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("server reply: %v", err)
	}
}

func TestWriteLineRejectsEmbeddedNewline(t *testing.T) {
	testlog.Start(t)
	client, _ := pipeConns(t, DefaultConfig())
	if err := client.WriteLine(context.Background(), "a\nb"); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText, got %v", err)
	}
	if err := client.WriteLine(context.Background(), string([]byte{0xff})); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText for invalid utf-8, got %v", err)
	}
}

func TestReadMessageHonorsCancellation(t *testing.T) {
	testlog.Start(t)
	_, server := pipeConns(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := server.ReadMessage(ctx)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("read message ignored cancellation")
	}
}

func TestConnUsableAfterCancelledRead(t *testing.T) {
	testlog.Start(t)
	client, server := pipeConns(t, DefaultConfig())

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			_, err := server.ReadLine(ctx)
			errc <- err
		}()
		cancel()
		if err := <-errc; !errors.Is(err, context.Canceled) {
			t.Fatalf("round %d: expected context.Canceled, got %v", i, err)
		}

		go func() { errc <- client.WriteLine(context.Background(), "hello") }()
		line, err := server.ReadLine(context.Background())
		if err != nil || line != "hello" {
			t.Fatalf("round %d: read after cancel: line=%q err=%v", i, line, err)
		}
		if err := <-errc; err != nil {
			t.Fatalf("round %d: write: %v", i, err)
		}
	}
}

func TestDelimitAckTimeout(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.AckTimeout = 50 * time.Millisecond
	client, server := pipeConns(t, cfg)

	go func() {
		// drain the delimiter but never acknowledge
		buf := make([]byte, frame.WordSize)
		_, _ = server.rw.Read(buf)
	}()
	err := client.Delimit(context.Background())
	if err == nil {
		t.Fatalf("expected ack timeout")
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	if _, err := Dial(context.Background(), addr, cfg); err == nil {
		t.Fatalf("expected dial failure")
	}
}

func TestTLSSessionRoundTrip(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t, "hitension-test-ca")
	serverPair := ca.ServerPair(t, "htserver")
	clientPair := ca.ClientPair(t, "htclient")

	serverCfg := DefaultConfig()
	serverCfg.TLS = TLSConfig{
		Enabled:  true,
		Mutual:   true,
		CAFile:   ca.CAFile(),
		CertFile: serverPair.CertFile,
		KeyFile:  serverPair.KeyFile,
	}
	ln, err := Listen("127.0.0.1:0", serverCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		data []float64
		err  error
	}
	resc := make(chan result, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			resc <- result{err: err}
			return
		}
		conn := NewConn(raw, serverCfg)
		defer conn.Close()
		data, err := conn.ReadMessage(ctx)
		resc <- result{data: data, err: err}
	}()

	clientCfg := DefaultConfig()
	clientCfg.TLS = TLSConfig{
		Enabled:  true,
		Mutual:   true,
		CAFile:   ca.CAFile(),
		CertFile: clientPair.CertFile,
		KeyFile:  clientPair.KeyFile,
	}
	conn, err := Dial(ctx, ln.Addr().String(), clientCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	in := make([]float64, 5000)
	for i := range in {
		in[i] = math.Sqrt(float64(i))
	}
	if err := conn.Send(ctx, in); err != nil {
		t.Fatalf("send: %v", err)
	}
	res := <-resc
	if res.err != nil {
		t.Fatalf("server read: %v", res.err)
	}
	if len(res.data) != len(in) || res.data[4999] != in[4999] {
		t.Fatalf("payload mismatch len=%d", len(res.data))
	}
}
