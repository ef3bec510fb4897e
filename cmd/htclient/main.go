package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/hitension/internal/observability"
	"github.com/danmuck/hitension/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "client config path (optional)")
	addr := flag.String("addr", "", "server address, overrides config")
	words := flag.Int("words", -1, "float64 words per message, overrides config")
	rounds := flag.Int("rounds", 0, "messages to send, overrides config")
	flag.Parse()

	observability.InitLogger("htclient")

	cfg := defaultClientConfig()
	if *configPath != "" {
		loaded, err := loadClientConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load client config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *words >= 0 {
		cfg.Words = *words
	}
	if *rounds > 0 {
		cfg.Rounds = *rounds
	}
	if err := cfg.validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid client config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("htclient failed")
	}
}

func run(ctx context.Context, cfg clientConfig) error {
	conn, err := session.Dial(ctx, cfg.Addr, cfg.Session)
	if err != nil {
		return err
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	data := make([]float64, cfg.Words)
	for i := range data {
		data[i] = rng.NormFloat64()
	}

	var total time.Duration
	for round := 1; round <= cfg.Rounds; round++ {
		start := time.Now()
		if err := exchange(ctx, conn, cfg, data); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		elapsed := time.Since(start)
		total += elapsed
		log.Info().
			Int("round", round).
			Int("words", len(data)).
			Dur("duration", elapsed).
			Float64("mb_per_sec", throughput(len(data), elapsed, cfg.Command)).
			Msg("round complete")
	}
	log.Info().
		Int("rounds", cfg.Rounds).
		Dur("total", total).
		Float64("mb_per_sec", throughput(len(data)*cfg.Rounds, total, cfg.Command)).
		Msg("htclient done")

	if err := conn.WriteLine(ctx, "quit"); err != nil {
		return err
	}
	_, err = conn.ReadLine(ctx)
	return err
}

func exchange(ctx context.Context, conn *session.Conn, cfg clientConfig, data []float64) error {
	if err := conn.WriteLine(ctx, cfg.Command); err != nil {
		return err
	}
	for _, chunk := range splitChunks(data, cfg.Chunks) {
		if err := conn.WriteFloats(ctx, chunk); err != nil {
			return err
		}
	}
	if err := conn.Delimit(ctx); err != nil {
		return err
	}

	switch cfg.Command {
	case "echo":
		back, err := conn.ReadMessage(ctx)
		if err != nil {
			return err
		}
		if len(back) != len(data) {
			return fmt.Errorf("echo returned %d words, sent %d", len(back), len(data))
		}
		for i := range data {
			if math.Float64bits(back[i]) != math.Float64bits(data[i]) {
				return fmt.Errorf("echo mismatch at word %d", i)
			}
		}
	}

	reply, err := conn.ReadLine(ctx)
	if err != nil {
		return err
	}
	if strings.HasPrefix(reply, "error") {
		return fmt.Errorf("server: %s", reply)
	}
	log.Debug().Str("reply", reply).Msg("server reply")
	return nil
}

// splitChunks cuts data into at most n non-empty contiguous slices.
func splitChunks(data []float64, n int) [][]float64 {
	if len(data) == 0 {
		return nil
	}
	n = max(1, min(n, len(data)))
	size := (len(data) + n - 1) / n
	out := make([][]float64, 0, n)
	for start := 0; start < len(data); start += size {
		out = append(out, data[start:min(start+size, len(data))])
	}
	return out
}

// throughput reports payload MB/s; echo moves the payload twice.
func throughput(words int, elapsed time.Duration, command string) float64 {
	if elapsed <= 0 {
		return 0
	}
	bytes := float64(words * 8)
	if command == "echo" {
		bytes *= 2
	}
	return bytes / elapsed.Seconds() / 1e6
}
