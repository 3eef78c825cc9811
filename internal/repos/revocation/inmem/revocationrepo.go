// Package inmem provides a token revocation repository that holds the revoked token IDs in-memory
package inmem

import (
	"time"

	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// How often expired entries are dropped
const purgeInterval = time.Minute

// revocationRequest is a generic request that can be sent over one of the repo's channels to execute functions
// inside the control goroutine
type revocationRequest struct {
	tokenID   string
	expiresAt time.Time
	answer    chan<- bool
}

// RevocationRepo remembers the IDs of access tokens that have been revoked before they expired (e.g. by a logout).
// Entries are kept until the token would have expired anyway
type RevocationRepo struct {
	// revoke is a channel to add a token to the list
	revoke chan<- revocationRequest
	// check is a channel to ask whether a token has been revoked
	check chan<- revocationRequest
	done  chan struct{}
	now   func() time.Time
}

// New creates a new revocation repository instance. Close has to be called to stop its control goroutine
func New() *RevocationRepo {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *RevocationRepo {
	repo := &RevocationRepo{done: make(chan struct{}), now: now}
	// Spin up the control goroutine
	rv := make(chan revocationRequest)
	ch := make(chan revocationRequest)
	go repo.control(rv, ch)
	repo.revoke = rv
	repo.check = ch
	return repo
}

// control is the control goroutine that runs until the repo is closed, waiting for requests
func (r *RevocationRepo) control(revoke <-chan revocationRequest, check <-chan revocationRequest) {
	revoked := map[string]time.Time{}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case req := <-revoke:
			revoked[req.tokenID] = req.expiresAt
			req.answer <- true
		case req := <-check:
			expiresAt, ok := revoked[req.tokenID]
			if ok && !r.now().Before(expiresAt) {
				// The token is invalid by now anyway
				delete(revoked, req.tokenID)
				ok = false
			}
			req.answer <- ok
		case <-ticker.C:
			now := r.now()
			for id, expiresAt := range revoked {
				if !now.Before(expiresAt) {
					delete(revoked, id)
				}
			}
		case <-r.done:
			return
		}
	}
}

func (r *RevocationRepo) send(tokenID string, expiresAt time.Time, channel chan<- revocationRequest) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	answer := make(chan bool, 1)
	select {
	case channel <- revocationRequest{tokenID: tokenID, expiresAt: expiresAt, answer: answer}:
		return <-answer
	case <-r.done:
		return false
	}
}

// Revoke marks the token with the given ID as revoked until it expires
func (r *RevocationRepo) Revoke(tokenID string, expiresAt time.Time) error {
	if !r.send(tokenID, expiresAt, r.revoke) {
		return repos.ErrRepoClosed
	}
	return nil
}

// IsRevoked checks if the token with the given ID has been revoked
func (r *RevocationRepo) IsRevoked(tokenID string) bool {
	return r.send(tokenID, time.Time{}, r.check)
}

// Close stops the control goroutine
func (r *RevocationRepo) Close() {
	close(r.done)
}
