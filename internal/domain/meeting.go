package domain

type MeetingStatus string

const (
	StatusScheduled  MeetingStatus = "scheduled"
	StatusLive       MeetingStatus = "live"
	StatusInProgress MeetingStatus = "in_progress"
	StatusEnded      MeetingStatus = "ended"
	StatusCancelled  MeetingStatus = "cancelled"
)

// DefaultLiveStatuses are the states in which a meeting carries live traffic.
var DefaultLiveStatuses = []MeetingStatus{StatusLive, StatusInProgress}

// Meeting is the slice of the stored meeting the hub cares about.
type Meeting struct {
	ID            MeetingID
	Status        MeetingStatus
	HasJoinedHost bool
}
