package routing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

func TestPreviewDoesNotForceAccept(t *testing.T) {
	f := newFixture(store.GroupModeActive, store.DealFlowClassic)
	f.quotes.put(&store.Quote{GroupID: testGroup, RequesterID: testRequester, Status: store.QuotePending})
	f.matcher.trigger = trigger(store.ActionDealConfirm, testGroup)

	r := NewPreview(Deps{
		Modes:    f.modes,
		Triggers: f.matcher,
		Deals:    f.deals,
		Settings: f.settings,
		Keywords: f.keywords,
		Amounts:  fakeAmounts{},
		Quotes:   f.quotes,
		Logger:   slog.New(f.logs),
	})
	res := r.Route(context.Background(), msgFrom(testRequester, "fechado"))
	if res.Destination != DestDeal || res.Context.DealAction != DealConfirmation {
		t.Errorf("got (%s, %q), want (%s, %q)", res.Destination, res.Context.DealAction, DestDeal, DealConfirmation)
	}
	if len(f.quotes.accepted) != 0 {
		t.Errorf("preview force-accepted %v", f.quotes.accepted)
	}

	// Catch-all still sees the live quote.
	f.matcher.trigger = nil
	res = r.Route(context.Background(), msgFrom(testRequester, "melhora?"))
	if res.Destination != DestDeal || res.Context.DealAction != DealUnrecognizedInput {
		t.Errorf("catch-all got (%s, %q)", res.Destination, res.Context.DealAction)
	}
}
