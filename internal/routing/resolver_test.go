package routing

import (
	"log/slog"
	"testing"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

func TestResolverActionTable(t *testing.T) {
	tests := []struct {
		action   store.ActionType
		wantDest Destination
		wantTag  DealAction
	}{
		{store.ActionDealLock, DestDeal, DealPriceLock},
		{store.ActionDealCancel, DestDeal, DealCancellation},
		{store.ActionDealConfirm, DestDeal, DealConfirmation},
		{store.ActionDealVolume, DestDeal, DealVolumeInquiry},
		{store.ActionTronscanProcess, DestTronscan, ""},
		{store.ActionReceiptProcess, DestReceipt, ""},
		{store.ActionControlCommand, DestControl, ""},
		{store.ActionPriceQuote, DestPrice, ""},
		{store.ActionVolumeQuote, DestPrice, ""},
		{store.ActionTextResponse, DestPrice, ""},
		{store.ActionAIPrompt, DestPrice, ""},
		{"future_action", DestPrice, ""},
	}
	r := NewResolver(&fakeQuotes{}, nil)
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			tr := trigger(tt.action, testGroup)
			res := r.Resolve(tr, msgFrom(testRequester, "x"))
			if res.Destination != tt.wantDest || res.Context.DealAction != tt.wantTag {
				t.Errorf("Resolve(%s) = (%s, %q), want (%s, %q)",
					tt.action, res.Destination, res.Context.DealAction, tt.wantDest, tt.wantTag)
			}
			if res.Context.Trigger != tr {
				t.Error("trigger not attached to context")
			}
		})
	}
}

func TestResolverRoundTripStable(t *testing.T) {
	r := NewResolver(nil, nil)
	for i := 0; i < 3; i++ {
		lock := r.Resolve(trigger(store.ActionDealLock, testGroup), msgFrom(testRequester, "trava"))
		if lock.Destination != DestDeal || lock.Context.DealAction != DealPriceLock {
			t.Fatalf("deal_lock resolved to (%s, %q)", lock.Destination, lock.Context.DealAction)
		}
		tron := r.Resolve(trigger(store.ActionTronscanProcess, testGroup), msgFrom(testRequester, "https://tronscan.org/#/transaction/abc"))
		if tron.Destination != DestTronscan || tron.Context.DealAction != "" {
			t.Fatalf("tronscan_process resolved to (%s, %q)", tron.Destination, tron.Context.DealAction)
		}
	}
}

type panickingQuotes struct{}

func (panickingQuotes) Active(string) *store.Quote { panic("quote book gone") }
func (panickingQuotes) ForceAccept(string)         {}

func TestResolverQuotePanicStillRoutes(t *testing.T) {
	logs := &recordHandler{}
	r := NewResolver(panickingQuotes{}, slog.New(logs))
	res := r.Resolve(trigger(store.ActionDealConfirm, testGroup), msgFrom(testRequester, "fechado"))
	if res.Destination != DestDeal || res.Context.DealAction != DealConfirmation {
		t.Errorf("got (%s, %q), want confirmation", res.Destination, res.Context.DealAction)
	}
	if !logs.has("routing.quote_accept_failed") {
		t.Error("expected routing.quote_accept_failed log")
	}
}
