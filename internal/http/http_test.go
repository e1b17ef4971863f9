package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/amount"
	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

const testToken = "s3cret"

type activeModes struct{}

func (activeModes) Mode(string) store.GroupMode { return store.GroupModeActive }

type phraseMatcher map[string]store.ActionType

func (m phraseMatcher) Match(_ context.Context, text, groupID string, _ bool) (*store.Trigger, error) {
	if a, ok := m[strings.ToLower(text)]; ok {
		return &store.Trigger{Phrase: text, ActionType: a, GroupID: groupID, IsActive: true}, nil
	}
	return nil, nil
}

type noDeals struct{}

func (noDeals) GetActive(context.Context, string, string) (*store.Deal, error) { return nil, nil }

type classicFlow struct{}

func (classicFlow) DealFlowMode(context.Context, string) (store.DealFlowMode, error) {
	return store.DealFlowClassic, nil
}

type noKeywords struct{}

func (noKeywords) Keywords(string) []string { return nil }

func newMux(t *testing.T) (*http.ServeMux, *quotes.Book) {
	t.Helper()
	book := quotes.NewBook(0, nil)
	router := routing.NewPreview(routing.Deps{
		Modes:    activeModes{},
		Triggers: phraseMatcher{"fechado": store.ActionDealConfirm, "cotação": store.ActionPriceQuote},
		Deals:    noDeals{},
		Settings: classicFlow{},
		Keywords: noKeywords{},
		Amounts:  amount.Parser{},
		Quotes:   book,
	})

	reg := invalidate.NewRegistry(nil)
	reg.Register(bus.CacheKindTriggers, func(context.Context, string) error { return nil })

	mux := http.NewServeMux()
	NewRoutingHandler(router, func(id string) bool { return id == "ctl@g.us" }, testToken).RegisterRoutes(mux)
	NewQuotesHandler(book, testToken).RegisterRoutes(mux)
	NewCacheHandler(invalidate.NewInvalidator(reg, nil, nil), testToken).RegisterRoutes(mux)
	return mux, book
}

func do(mux *http.ServeMux, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	mux, _ := newMux(t)
	tests := []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{testToken, http.StatusOK},
	}
	for _, tt := range tests {
		rec := do(mux, "GET", "/v1/route/rules", "", tt.token)
		if rec.Code != tt.want {
			t.Errorf("token %q: status = %d, want %d", tt.token, rec.Code, tt.want)
		}
	}
}

func TestRoutePreview(t *testing.T) {
	mux, book := newMux(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantDest routing.Destination
		wantRule string
	}{
		{
			name:     "price trigger",
			body:     `{"group_id":"g1@g.us","sender_id":"c1","text":"cotação"}`,
			wantCode: http.StatusOK,
			wantDest: routing.DestPrice,
			wantRule: routing.RuleTriggerMatch,
		},
		{
			name:     "pdf receipt",
			body:     `{"group_id":"g1@g.us","sender_id":"c1","attachments":[{"kind":"document","content_type":"application/pdf"}]}`,
			wantCode: http.StatusOK,
			wantDest: routing.DestReceipt,
			wantRule: routing.RuleReceipt,
		},
		{
			name:     "control group",
			body:     `{"group_id":"ctl@g.us","sender_id":"op","text":"/mode g1 active"}`,
			wantCode: http.StatusOK,
			wantDest: routing.DestControl,
			wantRule: routing.RuleControlGroup,
		},
		{
			name:     "missing sender",
			body:     `{"group_id":"g1@g.us","text":"x"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad json",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "POST", "/v1/route/preview", tt.body, testToken)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var res routing.Result
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			if res.Destination != tt.wantDest || res.Rule != tt.wantRule {
				t.Errorf("got (%s, %s), want (%s, %s)", res.Destination, res.Rule, tt.wantDest, tt.wantRule)
			}
		})
	}

	// A confirmation preview must leave the live quote open.
	book.Open(quotes.OpenRequest{GroupID: "g1@g.us", RequesterID: "c1", QuotedPrice: decimal.RequireFromString("5.41")})
	rec := do(mux, "POST", "/v1/route/preview", `{"group_id":"g1@g.us","sender_id":"c1","text":"fechado"}`, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if q := book.Active("g1@g.us"); q.Status != store.QuotePending {
		t.Errorf("quote status after preview = %q, want pending", q.Status)
	}
}

func TestQuotesEndpoints(t *testing.T) {
	mux, _ := newMux(t)

	steps := []struct {
		method, path, body string
		want               int
		wantStatus         store.QuoteStatus
	}{
		{"GET", "/v1/quotes/g1@g.us", "", http.StatusNotFound, ""},
		{"POST", "/v1/quotes", `{"group_id":"g1@g.us","requester_id":"c1","quoted_price":"5.42"}`, http.StatusCreated, store.QuotePending},
		{"POST", "/v1/quotes", `{"group_id":"g1@g.us","requester_id":"c1","quoted_price":"0"}`, http.StatusBadRequest, ""},
		{"POST", "/v1/quotes/g1@g.us/reprice", `{}`, http.StatusOK, store.QuoteRepricing},
		{"POST", "/v1/quotes/g1@g.us/reprice", `{"price":"5.45"}`, http.StatusOK, store.QuotePending},
		{"GET", "/v1/quotes/g1@g.us", "", http.StatusOK, store.QuotePending},
		{"POST", "/v1/quotes/g1@g.us/accept", `{}`, http.StatusOK, store.QuoteAccepted},
		{"POST", "/v1/quotes/g1@g.us/accept", `{}`, http.StatusConflict, ""},
		{"DELETE", "/v1/quotes/g2@g.us", "", http.StatusNotFound, ""},
	}
	for _, s := range steps {
		rec := do(mux, s.method, s.path, s.body, testToken)
		if rec.Code != s.want {
			t.Fatalf("%s %s = %d, want %d (%s)", s.method, s.path, rec.Code, s.want, rec.Body)
		}
		if s.wantStatus == "" {
			continue
		}
		var q store.Quote
		if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
			t.Fatal(err)
		}
		if q.Status != s.wantStatus {
			t.Errorf("%s %s status = %q, want %q", s.method, s.path, q.Status, s.wantStatus)
		}
	}
}

func TestCacheInvalidate(t *testing.T) {
	mux, _ := newMux(t)
	tests := []struct {
		body string
		want int
	}{
		{`{"kind":"triggers","key":"g1@g.us"}`, http.StatusOK},
		{`{"kind":"sessions"}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(mux, "POST", "/v1/cache/invalidate", tt.body, testToken); rec.Code != tt.want {
			t.Errorf("invalidate %s = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"":           "",
	}
	for header, want := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := extractBearerToken(req); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
