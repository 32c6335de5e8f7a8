package authflowrepo

import "time"

// AuthFlowState is what a pending provider login needs when its callback arrives.
type AuthFlowState struct {
	Provider     string
	CodeVerifier string
	Nonce        string
	RedirectURI  string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
	// Take returns the state and removes it, so a callback can be consumed once.
	Take(state string) (*AuthFlowState, error)
	DeleteExpired(before time.Time) int
}
