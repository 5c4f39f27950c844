package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// Record families. Every item in the ledger lives under one of these
// partition keys; the sort key carries the identity.
const (
	PKParticipant      = "PARTICIPANT"
	PKCompany          = "COMPANY"
	PKOrder            = "ORDER"
	PKParticipantOrder = "PARTICIPANT_ORDER"
	PKAgentAction      = "AGENT_ACTION"

	// Guard families hold uniqueness markers only; their items carry no
	// body beyond the key.
	PKDisplayName = "DISPLAY_NAME"
	PKEmail       = "EMAIL"
	PKCompanyName = "COMPANY_NAME"
	PKTicker      = "TICKER_SYMBOL"
)

// Attribute names the query filters match on.
const (
	attrOrderStatus = "orderStatus"
	attrOrderType   = "orderType"
)

// idTimeLayout is fixed width, unlike RFC3339Nano which trims trailing
// zeros. Fixed width keeps lexicographic SK order equal to creation order.
const idTimeLayout = "2006-01-02T15:04:05.000000000Z"

// NewParticipantID builds a kind-prefixed, creation-ordered identity:
// KIND#timestamp#suffix. The kind prefix lets agent queries scan only
// the agent range of the family.
func NewParticipantID(kind model.ParticipantKind, created time.Time) string {
	return fmt.Sprintf("%s#%s#%s", kind, created.UTC().Format(idTimeLayout), suffix())
}

// NewOrderID builds a creation-ordered, globally unique order identity.
func NewOrderID(created time.Time) string {
	return fmt.Sprintf("%s#%s", created.UTC().Format(idTimeLayout), suffix())
}

// NewActionID builds a creation-ordered agent-action identity. Actions
// sort by timestamp so "most recent" is a single bounded query.
func NewActionID(created time.Time) string {
	return fmt.Sprintf("%s#%s", created.UTC().Format(idTimeLayout), suffix())
}

func suffix() string {
	return uuid.NewString()[:8]
}

// ParticipantKey addresses a participant record.
func ParticipantKey(id string) store.Key { return store.Key{PK: PKParticipant, SK: id} }

// CompanyKey addresses a company record by ticker symbol.
func CompanyKey(symbol string) store.Key { return store.Key{PK: PKCompany, SK: symbol} }

// OrderKey addresses an order record.
func OrderKey(id string) store.Key { return store.Key{PK: PKOrder, SK: id} }

// ParticipantOrderKey addresses one row of the per-participant projection.
func ParticipantOrderKey(participantID, orderID string) store.Key {
	return store.Key{PK: PKParticipantOrder, SK: participantOrderSK(participantID, orderID)}
}

func participantOrderSK(participantID, orderID string) string {
	return fmt.Sprintf("%s#%s#%s", participantID, PKOrder, orderID)
}

// AgentActionKey addresses an agent-action record.
func AgentActionKey(id string) store.Key { return store.Key{PK: PKAgentAction, SK: id} }
