package store

import (
	"context"
	"sync"
)

// LocalGuard is the single-process ProposalGuard used when no Redis is configured.
type LocalGuard struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{claims: make(map[string]struct{})}
}

func (g *LocalGuard) Claim(_ context.Context, requestID, vendorID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := requestID + ":" + vendorID
	if _, held := g.claims[key]; held {
		return false, nil
	}
	g.claims[key] = struct{}{}
	return true, nil
}

func (g *LocalGuard) Release(_ context.Context, requestID, vendorID string) error {
	g.mu.Lock()
	delete(g.claims, requestID+":"+vendorID)
	g.mu.Unlock()
	return nil
}
