package signal

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/dkeye/meethub/internal/app/orch"
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit      int64
	SendBuffer     int
	WriteWait      time.Duration
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 8 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	return o
}

type SignalWSController struct {
	Hub      *orch.Hub
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(hub *orch.Hub, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	return &SignalWSController{
		Hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// native clients send no Origin
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleSignal upgrades the request and serves the connection until it closes.
// ctx is the server lifetime; its cancellation closes the socket with 1001.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	meetingID := domain.MeetingID(c.Query("meetingId"))
	token := c.Query("token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Debug().Str("module", "signal").Str("meeting", string(meetingID)).Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	t := newWSTransport(ws, ctl.opts.SendBuffer, ctl.opts.WriteWait)
	go t.writePump()
	stop := context.AfterFunc(ctx, func() { t.Close(websocket.CloseGoingAway, "server shutdown") })
	defer stop()

	conn, err := ctl.Hub.OnConnect(ctx, t, meetingID, token)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("meeting", string(meetingID)).Msg("connection refused")
		return
	}
	ctl.readPump(ctx, conn, t)
}

// Close codes in the 4xxx range are ours; everything else is transport noise.
func isExpectedClose(err error) bool {
	return !websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		core.CloseReplaced,
		core.CloseMeetingInvalid,
	)
}
