package routing

import (
	"log/slog"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

var actionDestinations = map[store.ActionType]Destination{
	store.ActionDealLock:        DestDeal,
	store.ActionDealCancel:      DestDeal,
	store.ActionDealConfirm:     DestDeal,
	store.ActionDealVolume:      DestDeal,
	store.ActionTronscanProcess: DestTronscan,
	store.ActionReceiptProcess:  DestReceipt,
	store.ActionControlCommand:  DestControl,
}

var actionDealTags = map[store.ActionType]DealAction{
	store.ActionDealLock:    DealPriceLock,
	store.ActionDealCancel:  DealCancellation,
	store.ActionDealConfirm: DealConfirmation,
	store.ActionDealVolume:  DealVolumeInquiry,
}

// DestinationFor maps a trigger action type to its destination.
// Action types without an explicit entry are price-handler work.
func DestinationFor(action store.ActionType) Destination {
	if dest, ok := actionDestinations[action]; ok {
		return dest
	}
	return DestPrice
}

// Resolver turns a matched trigger into a routing result.
type Resolver struct {
	quotes QuoteBook
	logger *slog.Logger
}

func NewResolver(quotes QuoteBook, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{quotes: quotes, logger: logger}
}

// Resolve maps t to a destination and tags deal actions. A confirmation
// force-accepts the open quote of the trigger's group, even mid-reprice.
func (r *Resolver) Resolve(t *store.Trigger, msg MessageContext) Result {
	msg.Trigger = t
	if t.ActionType == store.ActionDealConfirm {
		r.acceptOpenQuote(t, msg)
	}
	msg.DealAction = actionDealTags[t.ActionType]
	return Result{Destination: DestinationFor(t.ActionType), Context: msg}
}

func (r *Resolver) acceptOpenQuote(t *store.Trigger, msg MessageContext) {
	if r.quotes == nil {
		return
	}
	groupID := t.GroupID
	if groupID == "" {
		groupID = msg.GroupID
	}
	_, err := guardValue("quotes.force_accept", func() bool {
		q := r.quotes.Active(groupID)
		if !q.IsOpen() {
			return false
		}
		prev := q.Status
		r.quotes.ForceAccept(groupID)
		r.logger.Info("routing.quote_force_accepted",
			"group_id", groupID,
			"sender_id", msg.SenderID,
			"quote_id", q.ID,
			"previous_status", prev,
			"trigger_id", t.ID,
		)
		return true
	})
	if err != nil {
		r.logger.Warn("routing.quote_accept_failed",
			"group_id", groupID, "sender_id", msg.SenderID, "error", err)
	}
}
