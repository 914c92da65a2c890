package core

import (
	"context"

	"github.com/dkeye/meethub/internal/domain"
)

// Frame is one encoded JSON message as it goes over the wire.
type Frame []byte

// Transport abstracts the duplex channel behind a Connection.
// Owned by the adapter; the hub only asks it to send, ping or close.
type Transport interface {
	// TrySend queues a frame without blocking. ErrBackpressure when the buffer is full,
	// ErrClosed once the transport is shutting down.
	TrySend(Frame) error
	Ping() error
	// Close performs a graceful close with the given code after flushing queued frames.
	Close(code int, reason string)
	// Terminate drops the underlying socket without a close handshake.
	Terminate()
}

// TokenVerifier checks the bearer token carried by the connection URL.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// MeetingStore is the lookup side of the meeting database.
// GetMeeting returns ErrMeetingNotFound for unknown ids.
type MeetingStore interface {
	GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)
}

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []*Connection
}

type RoomInfo struct {
	MeetingID   domain.MeetingID `json:"meetingId"`
	MemberCount int              `json:"memberCount"`
}

// ParticipantDTO is a read-only view for rosters and APIs (no transport fields).
type ParticipantDTO struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	UserID        domain.UserID        `json:"userId"`
	DisplayName   string               `json:"displayName"`
	domain.MediaState
}
