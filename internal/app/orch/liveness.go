package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor periodically pings every connection and drops the ones that stayed silent
// since the previous sweep. It also rechecks each room's meeting once per sweep.
type Monitor struct {
	hub      *Hub
	interval time.Duration
}

func NewMonitor(h *Hub, interval time.Duration) *Monitor {
	return &Monitor{hub: h, interval: interval}
}

func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	log.Info().Str("module", "orch.liveness").Dur("interval", m.interval).Msg("liveness monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch.liveness").Msg("liveness monitor stopped")
			return
		case <-t.C:
			m.Sweep(ctx)
		}
	}
}

type SweepResult struct {
	Pinged  int
	Evicted int
	Invalid int
}

func (m *Monitor) Sweep(ctx context.Context) SweepResult {
	h := m.hub
	var res SweepResult

	for _, room := range h.Rooms.List() {
		usable, err := h.validator.IsUsable(ctx, room.MeetingID)
		if err != nil {
			log.Error().Err(err).Str("module", "orch.liveness").Str("meeting", string(room.MeetingID)).Msg("sweep revalidation failed")
			continue
		}
		if usable {
			continue
		}
		for _, c := range h.Rooms.Members(room.MeetingID) {
			h.evictInvalid(c)
			res.Invalid++
		}
	}

	for _, c := range h.Rooms.All() {
		if c.Gone() {
			continue
		}
		if !c.Alive() {
			log.Info().
				Str("module", "orch.liveness").
				Str("meeting", string(c.MeetingID())).
				Str("conn", string(c.ID())).
				Time("last_pong", c.LastPongAt()).
				Msg("no pong since last sweep, terminating")
			h.terminate(c, "liveness")
			res.Evicted++
			continue
		}
		c.Arm()
		if err := c.Ping(); err != nil {
			log.Debug().Err(err).Str("module", "orch.liveness").Str("conn", string(c.ID())).Msg("ping failed")
		}
		res.Pinged++
	}
	if res.Evicted > 0 || res.Invalid > 0 {
		log.Info().Str("module", "orch.liveness").Int("pinged", res.Pinged).Int("evicted", res.Evicted).Int("invalid", res.Invalid).Msg("sweep done")
	}
	return res
}
