package server

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/danmuck/hitension/internal/observability"
	"github.com/danmuck/hitension/internal/protocol/session"
)

const (
	CmdPing  = "ping"
	CmdEcho  = "echo"
	CmdSum   = "sum"
	CmdStats = "stats"
	CmdQuit  = "quit"
)

// connStats is reported by the stats command.
type connStats struct {
	Remote      string `json:"remote"`
	Commands    uint64 `json:"commands"`
	MessagesIn  uint64 `json:"messages_in"`
	MessagesOut uint64 `json:"messages_out"`
	WordsIn     uint64 `json:"words_in"`
	WordsOut    uint64 `json:"words_out"`
}

// dispatch runs one command. An error means the stream is no longer usable.
func (s *Server) dispatch(ctx context.Context, conn *session.Conn, name string, st *connStats) (bool, error) {
	st.Commands++
	s.served.Add(1)

	var (
		err  error
		quit bool
	)
	label := name
	switch name {
	case CmdPing:
		err = conn.WriteLine(ctx, "pong")
	case CmdEcho:
		err = s.echo(ctx, conn, st)
	case CmdSum:
		err = s.sum(ctx, conn, st)
	case CmdStats:
		err = writeJSONLine(ctx, conn, st)
	case CmdQuit:
		quit = true
		err = conn.WriteLine(ctx, "bye")
	default:
		label = "unknown"
		err = conn.WriteLinef(ctx, "error unknown command: %s", name)
	}
	observability.RecordCommand(label, err == nil)
	return quit, err
}

func (s *Server) echo(ctx context.Context, conn *session.Conn, st *connStats) error {
	data, err := conn.ReadMessage(ctx)
	if err != nil {
		return err
	}
	st.MessagesIn++
	st.WordsIn += uint64(len(data))

	if err := conn.Send(ctx, data); err != nil {
		return err
	}
	st.MessagesOut++
	st.WordsOut += uint64(len(data))
	return conn.WriteLinef(ctx, "ok %d", len(data))
}

func (s *Server) sum(ctx context.Context, conn *session.Conn, st *connStats) error {
	data, err := conn.ReadMessage(ctx)
	if err != nil {
		return err
	}
	st.MessagesIn++
	st.WordsIn += uint64(len(data))

	var total float64
	for _, v := range data {
		total += v
	}
	return conn.WriteLine(ctx, "sum "+strconv.FormatFloat(total, 'g', -1, 64))
}

func writeJSONLine(ctx context.Context, conn *session.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteLine(ctx, string(payload))
}
