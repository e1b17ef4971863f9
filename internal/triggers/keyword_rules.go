package triggers

import (
	"context"

	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// KeywordRule maps a keyword pattern key to the action it triggers.
type KeywordRule struct {
	PatternKey string
	Action     store.ActionType
	Priority   int
}

// DefaultKeywordRules is the rule set the keyword matcher ships with.
var DefaultKeywordRules = []KeywordRule{
	{PatternKey: routing.PatternDealCancellation, Action: store.ActionDealCancel, Priority: 10},
	{PatternKey: "deal_confirmation", Action: store.ActionDealConfirm, Priority: 20},
	{PatternKey: routing.PatternPriceLock, Action: store.ActionDealLock, Priority: 30},
	{PatternKey: "price_request", Action: store.ActionPriceQuote, Priority: 100},
}

// KeywordRuleMatcher resolves triggers from the keyword directory instead of
// the triggers table. Results are synthetic system triggers. It is used as
// the shadow candidate when evaluating a move away from the table.
type KeywordRuleMatcher struct {
	keywords routing.KeywordSource
	rules    []KeywordRule
}

// NewKeywordRuleMatcher creates a matcher. nil rules uses DefaultKeywordRules.
func NewKeywordRuleMatcher(keywords routing.KeywordSource, rules []KeywordRule) *KeywordRuleMatcher {
	if rules == nil {
		rules = DefaultKeywordRules
	}
	return &KeywordRuleMatcher{keywords: keywords, rules: rules}
}

// Match returns a trigger for the first rule whose keywords match text.
// Rules are tried in slice order. Control commands have no keyword rule.
func (m *KeywordRuleMatcher) Match(_ context.Context, text, groupID string, _ bool) (*store.Trigger, error) {
	for _, r := range m.rules {
		for _, kw := range m.keywords.Keywords(r.PatternKey) {
			if !routing.MatchesKeyword(text, []string{kw}) {
				continue
			}
			return &store.Trigger{
				Phrase:      kw,
				PatternType: store.PatternContains,
				ActionType:  r.Action,
				Priority:    r.Priority,
				IsActive:    true,
				Scope:       store.TriggerScopeSystem,
			}, nil
		}
	}
	return nil, nil
}
