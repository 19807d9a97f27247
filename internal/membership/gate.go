// Package membership turns an external channel membership lookup into a tri-state verdict.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single membership lookup.
const DefaultTimeout = 8 * time.Second

// Status is the outcome of a membership check.
type Status int

// Membership verdicts. Unknown gates like NotMember but is reported separately.
const (
	Unknown Status = iota
	Member
	NotMember
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case Member:
		return "member"
	case NotMember:
		return "not_member"
	default:
		return "unknown"
	}
}

// Allowed reports whether the verdict permits a claim.
func (s Status) Allowed() bool { return s == Member }

// ChatMember is the collaborator's view of a user in the channel.
type ChatMember struct {
	Status   string
	IsMember bool
}

// Lookup fetches a user's membership in a channel.
type Lookup interface {
	LookupMember(ctx context.Context, channel string, userID int64) (ChatMember, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, channel string, userID int64) (ChatMember, error)

// LookupMember calls f.
func (f LookupFunc) LookupMember(ctx context.Context, channel string, userID int64) (ChatMember, error) {
	return f(ctx, channel, userID)
}

// Gate verifies that users belong to the required channel.
type Gate struct {
	lookup  Lookup
	channel string
	timeout time.Duration
}

// NewGate constructs a Gate. An empty channel disables the requirement.
func NewGate(lookup Lookup, channel string, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{lookup: lookup, channel: strings.TrimSpace(channel), timeout: timeout}
}

// Channel returns the channel identifier users must join.
func (g *Gate) Channel() string {
	if g == nil {
		return ""
	}
	return g.channel
}

// Verify returns the membership verdict for userID. It never returns an error:
// lookup failures, panics and timeouts all resolve to Unknown.
func (g *Gate) Verify(ctx context.Context, userID int64) Status {
	if g == nil {
		return Unknown
	}
	if g.channel == "" {
		return Member
	}
	if g.lookup == nil {
		return Unknown
	}

	entry := log.WithFields(log.Fields{"user_id": userID, "channel": g.channel})

	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type lookupResult struct {
		member ChatMember
		err    error
	}
	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookupResult{err: fmt.Errorf("lookup panicked: %v", r)}
			}
		}()
		member, err := g.lookup.LookupMember(lookupCtx, g.channel, userID)
		done <- lookupResult{member: member, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				entry.Warn("membership: lookup timed out")
			} else {
				entry.WithError(res.err).Warn("membership: lookup failed")
			}
			return Unknown
		}
		return Classify(res.member)
	case <-lookupCtx.Done():
		entry.WithError(lookupCtx.Err()).Warn("membership: lookup timed out")
		return Unknown
	}
}

// Classify maps a collaborator member record to a verdict.
func Classify(m ChatMember) Status {
	switch strings.ToLower(strings.TrimSpace(m.Status)) {
	case "creator", "administrator", "member":
		return Member
	case "restricted":
		if m.IsMember {
			return Member
		}
		return NotMember
	case "left", "kicked":
		return NotMember
	default:
		return Unknown
	}
}
