package exchange

import (
	"errors"
	"net/http"

	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/metrics"
	"github.com/git-masi/memestock-backend/internal/store"
)

// Sentinel errors surfaced by the exchange. Callers act on the kind, not
// the message: the HTTP boundary maps them to status codes, the agent
// scheduler excludes candidates on the affordability ones.
var (
	// ErrValidation covers malformed input rejected before any ledger read.
	ErrValidation = errors.New("exchange: invalid request")

	// ErrInsufficientFunds is returned when a participant's unreserved
	// cash cannot cover a buy-side commitment.
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")

	// ErrInsufficientShares is returned when a participant's unreserved
	// holdings cannot cover a sell-side commitment.
	ErrInsufficientShares = errors.New("exchange: insufficient shares")

	// ErrSelfTrade is returned when a participant attempts to fulfill
	// their own order.
	ErrSelfTrade = errors.New("exchange: buyer and seller cannot be the same participant")

	// ErrInvalidState is returned when an order is no longer open at
	// fulfillment or cancellation time.
	ErrInvalidState = errors.New("exchange: order is not open")

	// ErrConflict means a concurrent writer won the race; the caller must
	// re-read before retrying. Nothing inside the exchange retries.
	ErrConflict = errors.New("exchange: concurrent write conflict")

	// ErrNotFound covers unknown participants, companies, and orders.
	ErrNotFound = errors.New("exchange: not found")

	// ErrDuplicate means a uniqueness guard rejected the value (display
	// name, email, company name, or ticker already taken).
	ErrDuplicate = errors.New("exchange: duplicate value")
)

// guardFamilies are the record families whose not-exists failures mean
// "value taken" rather than "lost a race".
var guardFamilies = map[string]bool{
	ledger.PKDisplayName: true,
	ledger.PKEmail:       true,
	ledger.PKCompanyName: true,
	ledger.PKTicker:      true,
}

// Translate maps store-layer failures onto exchange sentinels. The agent
// scheduler and the HTTP boundary share this mapping.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return errors.Join(ErrNotFound, err)
	}

	var condErr *store.ConditionError
	if errors.As(err, &condErr) {
		if condErr.Cond.Kind == store.CondNotExists && guardFamilies[condErr.Key.PK] {
			return errors.Join(ErrDuplicate, err)
		}
		metrics.WriteConflicts.Inc()
		return errors.Join(ErrConflict, err)
	}
	return err
}

// StatusCode maps exchange sentinels to transport status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrSelfTrade):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
