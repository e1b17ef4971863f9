package routing

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

type fakeModes map[string]store.GroupMode

func (f fakeModes) Mode(groupID string) store.GroupMode { return f[groupID] }

type fakeMatcher struct {
	mu          sync.Mutex
	trigger     *store.Trigger
	err         error
	panics      bool
	calls       int
	lastControl bool
}

func (f *fakeMatcher) Match(_ context.Context, _, _ string, isControl bool) (*store.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastControl = isControl
	if f.panics {
		panic("trigger backend exploded")
	}
	return f.trigger, f.err
}

func (f *fakeMatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDeals struct {
	mu     sync.Mutex
	deals  map[string]*store.Deal
	err    error
	panics bool
	calls  int
}

func dealKey(groupID, senderID string) string { return groupID + "|" + senderID }

func (f *fakeDeals) put(d *store.Deal) {
	if f.deals == nil {
		f.deals = make(map[string]*store.Deal)
	}
	f.deals[dealKey(d.GroupID, d.ClientID)] = d
}

func (f *fakeDeals) GetActive(_ context.Context, groupID, senderID string) (*store.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("deal backend exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.deals[dealKey(groupID, senderID)], nil
}

type fakeSettings struct {
	modes map[string]store.DealFlowMode
	err   error
}

func (f *fakeSettings) DealFlowMode(_ context.Context, groupID string) (store.DealFlowMode, error) {
	if f.err != nil {
		return "", f.err
	}
	if m, ok := f.modes[groupID]; ok {
		return m, nil
	}
	return store.DealFlowClassic, nil
}

type fakeKeywords struct {
	lists  map[string][]string
	panics bool
}

func (f *fakeKeywords) Keywords(key string) []string {
	if f.panics {
		panic("keyword file corrupt")
	}
	return f.lists[key]
}

// fakeAmounts accepts plain decimal literals only.
type fakeAmounts struct{}

func (fakeAmounts) ParseAmount(text string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

type fakeQuotes struct {
	mu       sync.Mutex
	quotes   map[string]*store.Quote
	accepted []string
}

func (f *fakeQuotes) put(q *store.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotes == nil {
		f.quotes = make(map[string]*store.Quote)
	}
	f.quotes[q.GroupID] = q
}

func (f *fakeQuotes) Active(groupID string) *store.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[groupID]
	if !ok {
		return nil
	}
	cp := *q
	return &cp
}

func (f *fakeQuotes) ForceAccept(groupID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.quotes[groupID]; ok {
		q.Status = store.QuoteAccepted
		f.accepted = append(f.accepted, groupID)
	}
}

// recordHandler captures log records so tests can assert on emitted events.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) has(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return true
		}
	}
	return false
}

const (
	testGroup     = "120363000000001@g.us"
	testRequester = "5511999990001@s.whatsapp.net"
	testOther     = "5511999990002@s.whatsapp.net"
)

type fixture struct {
	modes    fakeModes
	matcher  *fakeMatcher
	deals    *fakeDeals
	settings *fakeSettings
	keywords *fakeKeywords
	quotes   *fakeQuotes
	logs     *recordHandler
}

func newFixture(mode store.GroupMode, flow store.DealFlowMode) *fixture {
	return &fixture{
		modes:   fakeModes{testGroup: mode},
		matcher: &fakeMatcher{},
		deals:   &fakeDeals{},
		settings: &fakeSettings{modes: map[string]store.DealFlowMode{
			testGroup: flow,
		}},
		keywords: &fakeKeywords{lists: map[string][]string{
			PatternPriceLock:        {"trava", "lock", "travar"},
			PatternDealCancellation: {"cancela", "cancelar", "desisto"},
			PatternDealRejection:    {"passo"},
		}},
		quotes: &fakeQuotes{},
		logs:   &recordHandler{},
	}
}

func (f *fixture) router() *Router {
	return New(Deps{
		Modes:    f.modes,
		Triggers: f.matcher,
		Deals:    f.deals,
		Settings: f.settings,
		Keywords: f.keywords,
		Amounts:  fakeAmounts{},
		Quotes:   f.quotes,
		Logger:   slog.New(f.logs),
	})
}

func msgFrom(sender, text string) MessageContext {
	return MessageContext{
		GroupID:   testGroup,
		GroupName: "OTC Desk",
		Text:      text,
		SenderID:  sender,
	}
}

func trigger(action store.ActionType, groupID string) *store.Trigger {
	return &store.Trigger{Phrase: "x", ActionType: action, GroupID: groupID, IsActive: true}
}

func pdfAttachment() *Attachment {
	return &Attachment{DocumentMessage: &MediaMessage{Mimetype: "application/pdf", FileName: "comprovante.pdf"}}
}
