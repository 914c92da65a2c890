package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Validator decides whether a meeting may carry live traffic.
type Validator interface {
	IsUsable(ctx context.Context, id domain.MeetingID) (bool, error)
}

// MeetingValidator: the meeting exists, is in a live state and a host has joined.
type MeetingValidator struct {
	store core.MeetingStore
	live  map[domain.MeetingStatus]struct{}
}

func NewMeetingValidator(store core.MeetingStore, live ...domain.MeetingStatus) *MeetingValidator {
	if len(live) == 0 {
		live = domain.DefaultLiveStatuses
	}
	set := make(map[domain.MeetingStatus]struct{}, len(live))
	for _, s := range live {
		set[s] = struct{}{}
	}
	return &MeetingValidator{store: store, live: set}
}

func (v *MeetingValidator) IsUsable(ctx context.Context, id domain.MeetingID) (bool, error) {
	if id == "" {
		return false, nil
	}
	m, err := v.store.GetMeeting(ctx, id)
	if errors.Is(err, core.ErrMeetingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get meeting %s: %w", id, err)
	}
	if _, ok := v.live[m.Status]; !ok {
		return false, nil
	}
	return m.HasJoinedHost, nil
}

type verdict struct {
	usable bool
	at     time.Time
}

// DefaultCacheSize caps the number of meetings remembered by CachedValidator.
const DefaultCacheSize = 4096

// CachedValidator remembers verdicts for ttl so hot paths (screen-share frames)
// do not hit the store for every message. Errors are never cached.
type CachedValidator struct {
	next Validator
	ttl  time.Duration
	now  func() time.Time

	lru *expirable.LRU[domain.MeetingID, verdict]
}

// NewCachedValidator returns next unchanged when ttl <= 0.
func NewCachedValidator(next Validator, ttl time.Duration) Validator {
	return NewCachedValidatorSize(next, ttl, DefaultCacheSize)
}

func NewCachedValidatorSize(next Validator, ttl time.Duration, size int) Validator {
	if ttl <= 0 {
		return next
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedValidator{
		next: next,
		ttl:  ttl,
		now:  time.Now,
		lru:  expirable.NewLRU[domain.MeetingID, verdict](size, nil, ttl),
	}
}

func (v *CachedValidator) IsUsable(ctx context.Context, id domain.MeetingID) (bool, error) {
	now := v.now()
	// the lru expires on wall time; the stamp keeps the verdict age exact
	if e, ok := v.lru.Get(id); ok && now.Sub(e.at) < v.ttl {
		return e.usable, nil
	}

	usable, err := v.next.IsUsable(ctx, id)
	if err != nil {
		return false, err
	}
	v.lru.Add(id, verdict{usable: usable, at: now})
	return usable, nil
}

// Len is the number of cached verdicts.
func (v *CachedValidator) Len() int { return v.lru.Len() }
