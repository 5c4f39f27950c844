package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// Starting cash bounds for new participants, in cents.
const (
	minStartingCash = 100_00
	maxStartingCash = 5000_00
)

// CreateParticipantRequest is the signup payload for a human participant.
type CreateParticipantRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=3,max=32"`
	Email       string `json:"email" validate:"required,email"`
}

// CreateParticipant registers a human participant with a random starting
// endowment of cash and shares. Display name and email are claimed via
// guard items so duplicates fail atomically with the participant write.
func (s *Service) CreateParticipant(ctx context.Context, req CreateParticipantRequest) (*model.Participant, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	companies, err := s.ledger.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	rng, release := s.lockedRand()
	cash, holdings := RandomEndowment(rng, companies)
	release()

	now := time.Now().UTC()
	p := &model.Participant{
		ID:          ledger.NewParticipantID(model.KindHuman, now),
		Kind:        model.KindHuman,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		TotalCash:   cash,
		CashOnHand:  cash,
		Holdings:    holdings,
		Created:     now,
	}

	err = s.ledger.Store().Apply(ctx,
		ledger.PutParticipant(p, store.IfNotExists()),
		ledger.Guard(ledger.PKDisplayName, req.DisplayName),
		ledger.Guard(ledger.PKEmail, req.Email),
	)
	if err != nil {
		return nil, Translate(err)
	}
	return p, nil
}

// GetParticipant returns a participant by ID.
func (s *Service) GetParticipant(ctx context.Context, id string) (*model.Participant, error) {
	p, err := s.ledger.GetParticipant(ctx, id)
	if err != nil {
		return nil, Translate(err)
	}
	return p, nil
}

// RemoveParticipant deletes a participant and releases its uniqueness
// guards. Open orders are not touched; their reservations die with the
// participant record.
func (s *Service) RemoveParticipant(ctx context.Context, id string) error {
	p, err := s.ledger.GetParticipant(ctx, id)
	if err != nil {
		return Translate(err)
	}

	ops := []store.Op{
		store.Delete(ledger.ParticipantKey(p.ID), store.IfVersion(p.Version)),
		ledger.ReleaseGuard(ledger.PKDisplayName, p.DisplayName),
	}
	if p.Email != "" {
		ops = append(ops, ledger.ReleaseGuard(ledger.PKEmail, p.Email))
	}
	if err := s.ledger.Store().Apply(ctx, ops...); err != nil {
		return Translate(err)
	}
	return nil
}

// RandomEndowment draws a starting cash balance and a random basket of
// shares. The basket's nominal value never exceeds a second independent
// draw from the cash range, so early participants cannot dwarf the market.
func RandomEndowment(rng *rand.Rand, companies []model.Company) (int64, map[string]model.Holding) {
	cash := minStartingCash + rng.Int63n(maxStartingCash-minStartingCash)
	holdings := make(map[string]model.Holding)
	if len(companies) == 0 {
		return cash, holdings
	}

	numStocks := 1 + rng.Intn(len(companies))
	budget := minStartingCash + rng.Int63n(maxStartingCash-minStartingCash)

	for i := 0; i < numStocks; i++ {
		c := companies[rng.Intn(len(companies))]
		if c.CurrentPricePerShare <= 0 {
			continue
		}
		value := budget
		if i < numStocks-1 && budget > 0 {
			value = rng.Int63n(budget + 1)
		}
		budget -= value
		qty := value / c.CurrentPricePerShare
		if qty < 1 {
			qty = 1
		}
		h := holdings[c.Symbol]
		h.QuantityHeld += qty
		h.QuantityOnHand += qty
		holdings[c.Symbol] = h
	}
	return cash, holdings
}
