package signal

import (
	"context"

	"github.com/dkeye/meethub/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) readPump(ctx context.Context, conn *core.Connection, t *wsTransport) {
	defer func() {
		ctl.Hub.OnDisconnect(conn)
		t.Close(core.CloseNormal, "")
		log.Debug().Str("module", "signal").Str("conn", string(conn.ID())).Msg("readPump closing")
	}()

	t.conn.SetReadLimit(ctl.opts.ReadLimit)
	t.conn.SetPongHandler(func(string) error {
		ctl.Hub.OnPong(conn)
		return nil
	})
	limiter := newConnRateLimiter(ctl.opts.RatePerSecond, ctl.opts.RateBurst)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(conn.ID())).Msg("readPump closed")
			} else {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(conn.ID())).Msg("readPump read error")
			}
			return
		}
		if !limiter.Allow() && !bypassesLimit(data) {
			limiter.warn(conn)
			continue
		}
		ctl.Hub.Route(ctx, conn, data)
	}
}
