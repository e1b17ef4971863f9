package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// ErrCollaboratorPanic wraps a panic recovered from a collaborator call.
var ErrCollaboratorPanic = errors.New("collaborator panicked")

// GroupModes returns the current operating mode of a group. Implementations
// are expected to be cached; the router calls Mode on every message.
type GroupModes interface {
	Mode(groupID string) store.GroupMode
}

// TriggerMatcher returns the best trigger matching text, or nil.
// Control groups see control-command triggers; other groups never do.
type TriggerMatcher interface {
	Match(ctx context.Context, text, groupID string, isControl bool) (*store.Trigger, error)
}

// DealDirectory returns the sender's single active deal, or nil.
type DealDirectory interface {
	GetActive(ctx context.Context, groupID, senderID string) (*store.Deal, error)
}

// GroupSettings returns per-group deal-flow configuration.
type GroupSettings interface {
	DealFlowMode(ctx context.Context, groupID string) (store.DealFlowMode, error)
}

// KeywordSource returns the current keyword list for a semantic pattern key.
type KeywordSource interface {
	Keywords(patternKey string) []string
}

// AmountParser extracts a numeric amount from free text.
type AmountParser interface {
	ParseAmount(text string) (decimal.Decimal, bool)
}

// QuoteBook holds the single outstanding quote per group.
type QuoteBook interface {
	Active(groupID string) *store.Quote
	ForceAccept(groupID string)
}

// guard runs fn and converts a panic into an error wrapping ErrCollaboratorPanic.
func guard[T any](op string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			v, err = zero, fmt.Errorf("%s: %w: %v", op, ErrCollaboratorPanic, p)
		}
	}()
	return fn()
}

// guardValue is guard for collaborators that cannot return an error.
func guardValue[T any](op string, fn func() T) (T, error) {
	return guard(op, func() (T, error) { return fn(), nil })
}
