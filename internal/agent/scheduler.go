package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/git-masi/memestock-backend/internal/exchange"
	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/metrics"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/signal"
	"github.com/git-masi/memestock-backend/internal/store"
)

// Service spawns agents and runs scheduler ticks. All scheduling state
// lives in the ledger; the service itself is stateless between ticks.
// AgentActions are an append-only log keyed by creation time, so ticks are
// not serialized against each other: concurrent ticks can both act the same
// agent and both append, and the later record wins the next-agent pointer.
type Service struct {
	exchange *exchange.Service
	ledger   *ledger.Ledger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates the agent service. A nil rng gets a time-based seed;
// tests inject a fixed seed to pin the scorer's draws.
func NewService(ex *exchange.Service, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{exchange: ex, ledger: ex.Ledger(), rng: rng}
}

// Tick runs one scheduler turn: resolve the acting agent from the most
// recent AgentAction (or the earliest-created agent if none exists),
// snapshot the market, score and execute one action, and record the
// AgentAction advancing the ring. Returns (nil, nil) when no agents exist.
func (s *Service) Tick(ctx context.Context) (*model.AgentAction, error) {
	acting, err := s.actingAgent(ctx)
	if err != nil {
		return nil, err
	}
	if acting == nil {
		slog.Info("tick skipped, no agents")
		return nil, nil
	}

	snap, err := s.snapshot(ctx, acting)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	action := chooseAction(s.rng, acting, snap)
	s.mu.Unlock()

	if err := s.execute(ctx, acting, action); err != nil {
		return nil, fmt.Errorf("agent %s %s: %w", acting.ID, action.Kind, err)
	}

	now := time.Now().UTC()
	rec := &model.AgentAction{
		ID:          ledger.NewActionID(now),
		Created:     now,
		ActingAgent: acting.ID,
		NextAgent:   acting.NextAgent,
		Action:      string(action.Kind),
		OrderID:     action.OrderID,
		Symbol:      action.Symbol,
	}
	if err := s.ledger.Store().Apply(ctx, ledger.PutAgentAction(rec)); err != nil {
		return nil, exchange.Translate(err)
	}

	metrics.AgentActions.WithLabelValues(string(action.Kind)).Inc()
	slog.Info("agent acted",
		"agent", acting.ID, "action", action.Kind,
		"order", action.OrderID, "symbol", action.Symbol,
		"next", acting.NextAgent)
	return rec, nil
}

// actingAgent resolves whose turn it is. Returns (nil, nil) when no agents
// exist. If the recorded next agent has since been removed, the ring
// restarts from the earliest-created agent.
func (s *Service) actingAgent(ctx context.Context) (*model.Participant, error) {
	last, err := s.ledger.MostRecentAgentAction(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.firstAgent(ctx)
	case err != nil:
		return nil, err
	}

	acting, err := s.ledger.GetParticipant(ctx, last.NextAgent)
	if errors.Is(err, store.ErrNotFound) {
		return s.firstAgent(ctx)
	}
	if err != nil {
		return nil, err
	}
	return acting, nil
}

func (s *Service) firstAgent(ctx context.Context) (*model.Participant, error) {
	agent, err := s.ledger.FirstAgent(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// snapshot assembles the scorer's market view with concurrent reads: the
// reads are independent and read-only, so ordering among them is free.
func (s *Service) snapshot(ctx context.Context, acting *model.Participant) (*signal.Snapshot, error) {
	var snap signal.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		snap.Companies, err = s.ledger.ListCompanies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.OpenBuyOrders, err = s.ledger.RecentOrders(gctx, model.OrderStatusOpen, model.OrderTypeBuy, ledger.RecentWindow)
		return err
	})
	g.Go(func() error {
		var err error
		snap.OpenSellOrders, err = s.ledger.RecentOrders(gctx, model.OrderStatusOpen, model.OrderTypeSell, ledger.RecentWindow)
		return err
	})
	g.Go(func() error {
		var err error
		snap.FulfilledOrders, err = s.ledger.RecentOrders(gctx, model.OrderStatusFulfilled, "", ledger.RecentWindow)
		return err
	})
	g.Go(func() error {
		projections, err := s.ledger.ParticipantOrders(gctx, acting.ID, model.OrderStatusOpen, 0)
		if err != nil {
			return err
		}
		snap.AgentOrders = make([]model.Order, 0, len(projections))
		for _, po := range projections {
			o, err := s.ledger.GetOrder(gctx, po.OrderID)
			if err != nil {
				return err
			}
			snap.AgentOrders = append(snap.AgentOrders, *o)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Service) execute(ctx context.Context, acting *model.Participant, action Action) error {
	switch action.Kind {
	case ActionDoNothing:
		return nil
	case ActionFulfillOrder:
		_, err := s.exchange.FulfillOrder(ctx, action.OrderID, acting.ID)
		return err
	case ActionCancelOrder:
		_, err := s.exchange.CancelOrder(ctx, action.OrderID)
		return err
	case ActionCreateOrder:
		_, err := s.exchange.CreateOrder(ctx, exchange.CreateOrderRequest{
			Participant: acting.ID,
			Type:        action.Type,
			Symbol:      action.Symbol,
			Quantity:    action.Quantity,
			Total:       action.Total,
		})
		return err
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
