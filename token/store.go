package token

import (
	"context"
	"time"
)

// Pair is the Session Token and Refresh Token held by the client. The two are always
// written together: saving a new pair replaces the previous one entirely.
type Pair struct {
	SessionToken string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	AcquiredAt   time.Time `json:"acquiredAt"`
}

// Empty reports whether the pair carries no session token.
func (p Pair) Empty() bool {
	return p.SessionToken == ""
}

// Store persists the current token pair. Exactly one Store backs a process.
//
// Read never fails from the caller's point of view: a backend error is logged and reported
// as an absent pair. Clear is idempotent.
type Store interface {
	Save(ctx context.Context, pair Pair) error
	Read(ctx context.Context) (Pair, bool)
	Clear(ctx context.Context) error
}
