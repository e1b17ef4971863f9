package routing

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// DefaultDirectAmountMin is the smallest bare number treated as an amount
// reply to a pending quote when the sender has no deal yet.
var DefaultDirectAmountMin = decimal.NewFromInt(100)

// Intercept drives simple-flow groups by deal state before any trigger runs.
// Groups in classic flow are never intercepted.
type Intercept struct {
	settings  GroupSettings
	deals     DealDirectory
	quotes    QuoteBook
	keywords  KeywordSource
	amounts   AmountParser
	directMin decimal.Decimal
	logger    *slog.Logger
}

// Evaluate returns the intercepted result, or nil to let routing continue.
// Lookup failures and panics are logged and yield nil.
func (ic *Intercept) Evaluate(ctx context.Context, msg MessageContext) (res *Result) {
	defer func() {
		if p := recover(); p != nil {
			ic.logger.Error("routing.intercept_panic",
				"group_id", msg.GroupID, "sender_id", msg.SenderID, "panic", p)
			res = nil
		}
	}()

	flow, err := guard("settings.deal_flow_mode", func() (store.DealFlowMode, error) {
		return ic.settings.DealFlowMode(ctx, msg.GroupID)
	})
	if err != nil {
		ic.logger.Warn("routing.intercept_failed",
			"group_id", msg.GroupID, "sender_id", msg.SenderID, "op", "deal_flow_mode", "error", err)
		return nil
	}
	if flow != store.DealFlowSimple {
		return nil
	}

	d, err := guard("deals.get_active", func() (*store.Deal, error) {
		return ic.deals.GetActive(ctx, msg.GroupID, msg.SenderID)
	})
	if err != nil {
		ic.logger.Warn("routing.intercept_failed",
			"group_id", msg.GroupID, "sender_id", msg.SenderID, "op", "get_active_deal", "error", err)
		return nil
	}
	if d == nil {
		return ic.directAmount(msg)
	}

	msg.Deal = d
	switch d.State {
	case store.DealQuoted:
		return ic.quoted(msg)
	case store.DealAwaitingAmount:
		return ic.awaitingAmount(msg)
	}
	return nil
}

// directAmount bridges a bare number answering a pending quote into the deal flow.
func (ic *Intercept) directAmount(msg MessageContext) *Result {
	q := ic.quotes.Active(msg.GroupID)
	if q == nil || q.Status != store.QuotePending {
		return nil
	}
	amount, ok := ic.amounts.ParseAmount(msg.Text)
	if !ok || amount.LessThan(ic.directMin) {
		return nil
	}
	msg.Quote = q
	msg.Amount, msg.HasAmount = amount, true
	return intercepted(msg, DealDirectAmount)
}

func (ic *Intercept) quoted(msg MessageContext) *Result {
	if MatchesKeyword(msg.Text, withExtras(ic.keywords.Keywords(PatternDealRejection), extraRejectionKeywords)) {
		return intercepted(msg, DealRejection)
	}
	if MatchesKeyword(msg.Text, withExtras(ic.keywords.Keywords(PatternPriceLock), extraLockKeywords)) {
		return intercepted(msg, DealPriceLock)
	}
	// A bare number locks at the quoted price for that amount.
	if amount, ok := ic.amounts.ParseAmount(msg.Text); ok && amount.IsPositive() {
		msg.Amount, msg.HasAmount = amount, true
		return intercepted(msg, DealPriceLock)
	}
	return intercepted(msg, DealUnrecognizedInput)
}

func (ic *Intercept) awaitingAmount(msg MessageContext) *Result {
	if MatchesKeyword(msg.Text, ic.keywords.Keywords(PatternDealCancellation)) {
		return intercepted(msg, DealCancellation)
	}
	if amount, ok := ic.amounts.ParseAmount(msg.Text); ok && amount.IsPositive() {
		msg.Amount, msg.HasAmount = amount, true
		return intercepted(msg, DealVolumeInput)
	}
	return intercepted(msg, DealUnrecognizedInput)
}

func intercepted(msg MessageContext, action DealAction) *Result {
	res := deal(msg, action)
	return &res
}
