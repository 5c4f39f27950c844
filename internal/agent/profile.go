// Package agent implements the autonomous trader side of the exchange:
// agent accounts with personality weights, the utility scorer that turns a
// market snapshot into a chosen action, and the round-robin scheduler that
// gives each agent one turn per tick.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/git-masi/memestock-backend/internal/exchange"
	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// Temperaments seed the personality weights. Each spawn adds a uniform
// draw in [0, 10) to every weight so two agents of the same temperament
// still trade differently.
var temperaments = map[string]model.RiskProfile{
	"aggressive":   {Fomo: 20, LossAversion: 0, Collector: 10, Wildcard: 10},
	"chaotic":      {Fomo: 15, LossAversion: 0, Collector: 5, Wildcard: 20},
	"conservative": {Fomo: 0, LossAversion: 25, Collector: 10, Wildcard: 5},
}

var temperamentNames = []string{"aggressive", "chaotic", "conservative"}

var (
	nameAdjectives = []string{
		"Brisk", "Clever", "Daring", "Eager", "Feral", "Gilded", "Hasty",
		"Lucky", "Nimble", "Quiet", "Rowdy", "Sly", "Stoic", "Zesty",
	}
	nameNouns = []string{
		"Badger", "Condor", "Dingo", "Ferret", "Gecko", "Heron", "Ibex",
		"Jackal", "Lemur", "Marmot", "Otter", "Puffin", "Raccoon", "Wombat",
	}
)

// SpawnRequest optionally pins the new agent's temperament; a blank
// temperament draws one at random.
type SpawnRequest struct {
	Temperament string `json:"temperament"`
}

// Spawn creates an agent participant and splices it into the scheduling
// ring: the new agent inherits the most recently created agent's next
// pointer, and that agent now points at the newcomer. A lone agent points
// at itself. The splice, the agent write, and the display-name guard
// commit as one batch.
func (s *Service) Spawn(ctx context.Context, req SpawnRequest) (*model.Participant, error) {
	if req.Temperament != "" {
		if _, ok := temperaments[req.Temperament]; !ok {
			return nil, fmt.Errorf("%w: unknown temperament %q", exchange.ErrValidation, req.Temperament)
		}
	}

	companies, err := s.ledger.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	profile := randomProfile(s.rng, req.Temperament)
	name := randomName(s.rng)
	cash, holdings := exchange.RandomEndowment(s.rng, companies)
	s.mu.Unlock()

	now := time.Now().UTC()
	agent := &model.Participant{
		ID:          ledger.NewParticipantID(model.KindAgent, now),
		Kind:        model.KindAgent,
		DisplayName: name,
		TotalCash:   cash,
		CashOnHand:  cash,
		Holdings:    holdings,
		Created:     now,
		Profile:     profile,
	}
	agent.NextAgent = agent.ID

	ops := []store.Op{ledger.Guard(ledger.PKDisplayName, name)}
	last, err := s.ledger.LastAgent(ctx)
	switch {
	case err == nil:
		agent.NextAgent = last.NextAgent
		last.NextAgent = agent.ID
		ops = append(ops, ledger.PutParticipant(last, store.IfVersion(last.Version)))
	case errors.Is(err, store.ErrNotFound):
		// First agent; the ring is just itself.
	default:
		return nil, err
	}
	ops = append(ops, ledger.PutParticipant(agent, store.IfNotExists()))

	if err := s.ledger.Store().Apply(ctx, ops...); err != nil {
		return nil, exchange.Translate(err)
	}
	return agent, nil
}

func randomProfile(rng *rand.Rand, temperament string) model.RiskProfile {
	if temperament == "" {
		temperament = temperamentNames[rng.Intn(len(temperamentNames))]
	}
	p := temperaments[temperament]
	p.Fomo += rng.Intn(10)
	p.LossAversion += rng.Intn(10)
	p.Collector += rng.Intn(10)
	p.Wildcard += rng.Intn(10)
	return p
}

func randomName(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s %04d",
		nameAdjectives[rng.Intn(len(nameAdjectives))],
		nameNouns[rng.Intn(len(nameNouns))],
		rng.Intn(10000))
}
