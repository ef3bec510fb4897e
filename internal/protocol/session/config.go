package session

import (
	"time"

	"github.com/danmuck/hitension/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// TLSConfig describes optional transport security for a session.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines connection defaults. A zero timeout blocks forever, which
// is the protocol's native behavior.
type Config struct {
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	AckTimeout         time.Duration
	BufferSize         int
	MaxConnectAttempts int
	Frame              frame.Options
	Backoff            BackoffConfig
	TLS                TLSConfig
}

const DefaultBufferSize = 64 * 1024

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
		BufferSize:         DefaultBufferSize,
		MaxConnectAttempts: 5,
		Frame:              frame.DefaultOptions(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
