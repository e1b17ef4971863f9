package routing

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// Rule names, in evaluation order.
const (
	RuleControlGroup  = "control_group"
	RuleGroupMode     = "group_mode"
	RuleDealIntercept = "deal_intercept"
	RuleReceipt       = "receipt"
	RuleTriggerMatch  = "trigger_match"
	RuleQuoteCatchAll = "quote_catch_all"
)

// Deps are the collaborators a Router consults.
type Deps struct {
	Modes    GroupModes
	Triggers TriggerMatcher
	Deals    DealDirectory
	Settings GroupSettings
	Keywords KeywordSource
	Amounts  AmountParser
	Quotes   QuoteBook
	Logger   *slog.Logger

	// DirectAmountMin overrides DefaultDirectAmountMin when positive.
	DirectAmountMin decimal.Decimal
}

// rule decides or passes. ok=false hands the message to the next rule.
type rule struct {
	name  string
	apply func(ctx context.Context, msg MessageContext) (res Result, ok bool)
}

// Router walks an ordered rule table and returns the first decision.
// It keeps no mutable state and is safe for concurrent use.
type Router struct {
	modes     GroupModes
	triggers  TriggerMatcher
	quotes    QuoteBook
	resolver  *Resolver
	intercept *Intercept
	logger    *slog.Logger
	rules     []rule
}

// New creates a Router over the given collaborators.
func New(d Deps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	directMin := d.DirectAmountMin
	if !directMin.IsPositive() {
		directMin = DefaultDirectAmountMin
	}

	r := &Router{
		modes:    d.Modes,
		triggers: d.Triggers,
		quotes:   d.Quotes,
		resolver: NewResolver(d.Quotes, logger),
		intercept: &Intercept{
			settings:  d.Settings,
			deals:     d.Deals,
			quotes:    d.Quotes,
			keywords:  d.Keywords,
			amounts:   d.Amounts,
			directMin: directMin,
			logger:    logger,
		},
		logger: logger,
	}
	r.rules = []rule{
		{RuleControlGroup, r.controlGroup},
		{RuleGroupMode, r.groupMode},
		{RuleDealIntercept, r.dealIntercept},
		{RuleReceipt, r.receipt},
		{RuleTriggerMatch, r.triggerMatch},
		{RuleQuoteCatchAll, r.quoteCatchAll},
	}
	return r
}

// Rules returns the rule names in evaluation order.
func (r *Router) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rl := range r.rules {
		names[i] = rl.name
	}
	return names
}

// Route decides the destination of msg. It never panics and never returns
// without a destination.
func (r *Router) Route(ctx context.Context, msg MessageContext) Result {
	if !msg.IsControlGroup {
		msg.ReceiptType = DetectReceipt(msg.Attachment)
	}
	for _, rl := range r.rules {
		if res, ok := r.apply(ctx, rl, msg); ok {
			res.Rule = rl.name
			r.logger.Debug("routing.decided",
				"group_id", msg.GroupID,
				"sender_id", msg.SenderID,
				"destination", res.Destination,
				"rule", rl.name,
				"deal_action", res.Context.DealAction,
			)
			return res
		}
	}
	// quote_catch_all always decides; this only guards against an edited table.
	return Result{Destination: DestIgnore, Context: msg, Rule: "fallback"}
}

func (r *Router) apply(ctx context.Context, rl rule, msg MessageContext) (res Result, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("routing.rule_panic",
				"rule", rl.name, "group_id", msg.GroupID, "sender_id", msg.SenderID, "panic", p)
			res, ok = Result{Destination: DestObserveOnly, Context: msg}, true
		}
	}()
	return rl.apply(ctx, msg)
}

// controlGroup handles administrative chats regardless of group mode.
func (r *Router) controlGroup(ctx context.Context, msg MessageContext) (Result, bool) {
	if !msg.IsControlGroup {
		return Result{}, false
	}
	t, err := r.match(ctx, msg, true)
	if err != nil {
		return Result{Destination: DestControl, Context: msg}, true
	}
	if t != nil {
		return r.resolver.Resolve(t, msg), true
	}
	return Result{Destination: DestControl, Context: msg}, true
}

func (r *Router) groupMode(_ context.Context, msg MessageContext) (Result, bool) {
	mode, err := guardValue("modes.mode", func() store.GroupMode {
		return r.modes.Mode(msg.GroupID)
	})
	if err != nil {
		r.logger.Warn("routing.group_mode_failed",
			"group_id", msg.GroupID, "sender_id", msg.SenderID, "error", err)
		return Result{Destination: DestObserveOnly, Context: msg}, true
	}
	switch mode {
	case store.GroupModeActive:
		return Result{}, false
	case store.GroupModePaused:
		return Result{Destination: DestIgnore, Context: msg}, true
	case store.GroupModeLearning, store.GroupModeAssisted:
		return Result{Destination: DestObserveOnly, Context: msg}, true
	}
	r.logger.Warn("routing.unknown_group_mode",
		"group_id", msg.GroupID, "sender_id", msg.SenderID, "mode", mode)
	return Result{Destination: DestObserveOnly, Context: msg}, true
}

func (r *Router) dealIntercept(ctx context.Context, msg MessageContext) (Result, bool) {
	if res := r.intercept.Evaluate(ctx, msg); res != nil {
		return *res, true
	}
	return Result{}, false
}

func (r *Router) receipt(_ context.Context, msg MessageContext) (Result, bool) {
	if msg.ReceiptType == ReceiptNone {
		return Result{}, false
	}
	return Result{Destination: DestReceipt, Context: msg}, true
}

// triggerMatch preserves the message for reprocessing when matching fails,
// so the catch-all never guesses from an unknown outcome.
func (r *Router) triggerMatch(ctx context.Context, msg MessageContext) (Result, bool) {
	t, err := r.match(ctx, msg, false)
	if err != nil {
		return Result{Destination: DestObserveOnly, Context: msg}, true
	}
	if t != nil {
		return r.resolver.Resolve(t, msg), true
	}
	return Result{}, false
}

func (r *Router) quoteCatchAll(_ context.Context, msg MessageContext) (Result, bool) {
	res, err := catchAll(r.quotes, msg)
	if err != nil {
		r.logger.Warn("routing.catch_all_failed",
			"group_id", msg.GroupID, "sender_id", msg.SenderID, "error", err)
	}
	return res, true
}

func (r *Router) match(ctx context.Context, msg MessageContext, isControl bool) (*store.Trigger, error) {
	t, err := guard("triggers.match", func() (*store.Trigger, error) {
		return r.triggers.Match(ctx, msg.Text, msg.GroupID, isControl)
	})
	if err != nil {
		r.logger.Warn("routing.trigger_match_failed",
			"group_id", msg.GroupID,
			"sender_id", msg.SenderID,
			"is_control", isControl,
			"error", err,
		)
	}
	return t, err
}
