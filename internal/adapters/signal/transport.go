package signal

import (
	"sync"
	"time"

	"github.com/dkeye/meethub/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsTransport implements core.Transport over a gorilla connection.
// Only writePump writes data frames; pings and the final close go through WriteControl.
type wsTransport struct {
	conn      *websocket.Conn
	send      chan core.Frame
	closing   chan []byte
	done      chan struct{}
	writeWait time.Duration

	closeOnce sync.Once
	doneOnce  sync.Once
}

func newWSTransport(conn *websocket.Conn, buffer int, writeWait time.Duration) *wsTransport {
	return &wsTransport{
		conn:      conn,
		send:      make(chan core.Frame, buffer),
		closing:   make(chan []byte, 1),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

func (t *wsTransport) TrySend(f core.Frame) error {
	select {
	case <-t.done:
		return core.ErrClosed
	default:
	}
	select {
	case t.send <- f:
		return nil
	case <-t.done:
		return core.ErrClosed
	default:
		return core.ErrBackpressure
	}
}

func (t *wsTransport) Ping() error {
	select {
	case <-t.done:
		return core.ErrClosed
	default:
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
}

// Close asks the write pump to flush queued frames and then send a close frame.
func (t *wsTransport) Close(code int, reason string) {
	t.closeOnce.Do(func() {
		t.closing <- websocket.FormatCloseMessage(code, reason)
	})
}

func (t *wsTransport) Terminate() { t.shutdown() }

func (t *wsTransport) shutdown() {
	t.doneOnce.Do(func() {
		close(t.done)
		_ = t.conn.Close()
	})
}

func (t *wsTransport) writePump() {
	defer t.shutdown()
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.closing:
			t.flush()
			_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))
			return
		case f := <-t.send:
			if err := t.write(f, time.Now().Add(t.writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// flush drains what is already queued under a single deadline.
func (t *wsTransport) flush() {
	deadline := time.Now().Add(t.writeWait)
	for {
		select {
		case f := <-t.send:
			if err := t.write(f, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (t *wsTransport) write(f core.Frame, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, f)
}
