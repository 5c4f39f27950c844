// Package exchange implements the order lifecycle and fulfillment engine:
// order creation with resource reservation, cancellation with release, and
// the atomic six-item fulfillment batch, together with the HTTP surface.
//
// Every mutation is a single conditional batch against the ledger store so
// balances, holdings, prices, and projections stay mutually consistent
// under concurrent requests. Nothing here retries: a lost race surfaces as
// ErrConflict and the caller decides whether to re-read and try again.
package exchange

import (
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/git-masi/memestock-backend/internal/ledger"
)

// Service handles exchange operations over the ledger.
type Service struct {
	ledger   *ledger.Ledger
	validate *validator.Validate
	hub      *WSHub // optional; nil disables broadcasts

	mu  sync.Mutex
	rng *rand.Rand // guarded by mu; signup endowments only
}

// NewService creates the exchange service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(l *ledger.Ledger, hub *WSHub) *Service {
	return &Service{
		ledger:   l,
		validate: validator.New(),
		hub:      hub,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Ledger exposes the typed ledger, mainly for the agent scheduler's
// snapshot reads.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

func (s *Service) lockedRand() (*rand.Rand, func()) {
	s.mu.Lock()
	return s.rng, s.mu.Unlock
}
