package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/meethub/internal/domain"
	"github.com/google/uuid"
)

type ConnID string

// Connection pairs identity meta with its transport endpoint.
// Registries store pointers to it but never own it.
type Connection struct {
	id        ConnID
	meetingID domain.MeetingID
	identity  domain.Identity
	transport Transport

	mu            sync.RWMutex
	participantID domain.ParticipantID
	displayName   string

	alive    atomic.Bool
	lastPong atomic.Int64
	gone     atomic.Bool
}

func NewConnection(meetingID domain.MeetingID, identity domain.Identity, t Transport) *Connection {
	c := &Connection{
		id:          ConnID(uuid.NewString()),
		meetingID:   meetingID,
		identity:    identity,
		transport:   t,
		displayName: identity.Username,
	}
	c.alive.Store(true)
	return c
}

func (c *Connection) ID() ConnID                  { return c.id }
func (c *Connection) MeetingID() domain.MeetingID { return c.meetingID }
func (c *Connection) Identity() domain.Identity   { return c.identity }

func (c *Connection) ParticipantID() domain.ParticipantID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantID
}

func (c *Connection) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

// Announce binds the participant id once. Repeating the same id is allowed,
// a different one is refused.
func (c *Connection) Announce(pid domain.ParticipantID, displayName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.participantID != "" && c.participantID != pid {
		return false
	}
	c.participantID = pid
	if displayName != "" {
		c.displayName = domain.TrimDisplayName(displayName)
	}
	return true
}

func (c *Connection) Send(f Frame) error { return c.transport.TrySend(f) }
func (c *Connection) Ping() error        { return c.transport.Ping() }

func (c *Connection) Close(code int, reason string) { c.transport.Close(code, reason) }
func (c *Connection) Terminate()                    { c.transport.Terminate() }

func (c *Connection) Alive() bool { return c.alive.Load() }

// MarkAlive records a pong.
func (c *Connection) MarkAlive(at time.Time) {
	c.lastPong.Store(at.UnixNano())
	c.alive.Store(true)
}

// Arm clears the alive flag ahead of a ping.
func (c *Connection) Arm() { c.alive.Store(false) }

func (c *Connection) LastPongAt() time.Time {
	ns := c.lastPong.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// MarkGone reports true only for the first caller; later disconnect paths become no-ops.
func (c *Connection) MarkGone() bool { return c.gone.CompareAndSwap(false, true) }

func (c *Connection) Gone() bool { return c.gone.Load() }
