package triggers

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// ShadowMatcher returns the primary matcher's result and runs the candidate
// on the same input, logging any disagreement. Candidate errors and panics
// are logged and never affect the result.
type ShadowMatcher struct {
	primary   routing.TriggerMatcher
	candidate routing.TriggerMatcher
	logger    *slog.Logger
}

// NewShadowMatcher creates a shadow matcher.
func NewShadowMatcher(primary, candidate routing.TriggerMatcher, logger *slog.Logger) *ShadowMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShadowMatcher{primary: primary, candidate: candidate, logger: logger}
}

func (m *ShadowMatcher) Match(ctx context.Context, text, groupID string, isControl bool) (*store.Trigger, error) {
	got, err := m.primary.Match(ctx, text, groupID, isControl)
	if err != nil {
		return nil, err
	}
	m.compare(ctx, got, text, groupID, isControl)
	return got, nil
}

func (m *ShadowMatcher) compare(ctx context.Context, primary *store.Trigger, text, groupID string, isControl bool) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Warn("triggers.shadow_panic", "group_id", groupID, "panic", p)
		}
	}()

	cand, err := m.candidate.Match(ctx, text, groupID, isControl)
	if err != nil {
		m.logger.Warn("triggers.shadow_failed", "group_id", groupID, "error", err)
		return
	}
	if actionOf(primary) == actionOf(cand) {
		return
	}
	m.logger.Info("triggers.shadow_mismatch",
		"group_id", groupID,
		"primary_action", actionOf(primary),
		"candidate_action", actionOf(cand),
		"primary_phrase", phraseOf(primary),
		"candidate_phrase", phraseOf(cand),
	)
}

func actionOf(t *store.Trigger) store.ActionType {
	if t == nil {
		return ""
	}
	return t.ActionType
}

func phraseOf(t *store.Trigger) string {
	if t == nil {
		return ""
	}
	return t.Phrase
}
