package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(domain.Meeting{ID: "m1", Status: domain.StatusLive})
	ctx := context.Background()

	if _, err := s.GetMeeting(ctx, "nope"); !errors.Is(err, core.ErrMeetingNotFound) {
		t.Fatalf("missing meeting err = %v", err)
	}
	m, err := s.GetMeeting(ctx, "m1")
	if err != nil || m.HasJoinedHost {
		t.Fatalf("got %+v, %v", m, err)
	}

	s.SetHostJoined("m1", true)
	s.SetStatus("m1", domain.StatusEnded)
	m, _ = s.GetMeeting(ctx, "m1")
	if !m.HasJoinedHost || m.Status != domain.StatusEnded {
		t.Fatalf("updates lost: %+v", m)
	}

	// returned values are copies
	m.Status = domain.StatusLive
	if again, _ := s.GetMeeting(ctx, "m1"); again.Status != domain.StatusEnded {
		t.Fatal("caller mutated the store")
	}
}
