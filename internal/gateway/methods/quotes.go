package methods

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/gateway"
	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// QuotesMethods lets the price engine drive the quote book over WebSocket RPC.
type QuotesMethods struct {
	book *quotes.Book
}

// NewQuotesMethods creates the quote book handler.
func NewQuotesMethods(book *quotes.Book) *QuotesMethods {
	return &QuotesMethods{book: book}
}

// Register registers all quote RPC methods.
func (m *QuotesMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodQuotesGet, m.handleGet)
	router.Register(protocol.MethodQuotesOpen, m.handleOpen)
	router.Register(protocol.MethodQuotesReprice, m.handleReprice)
	router.Register(protocol.MethodQuotesAccept, m.handleAccept)
	router.Register(protocol.MethodQuotesExpire, m.handleExpire)
}

type groupParams struct {
	GroupID string           `json:"group_id"`
	Price   *decimal.Decimal `json:"price,omitempty"`
}

func parseGroup(client *gateway.Client, req *protocol.RequestFrame) (groupParams, bool) {
	var p groupParams
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &p)
	}
	if p.GroupID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "group_id is required"))
		return p, false
	}
	return p, true
}

func (m *QuotesMethods) handleGet(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	p, ok := parseGroup(client, req)
	if !ok {
		return
	}
	q := m.book.Active(p.GroupID)
	if q == nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, quotes.ErrNoQuote.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, q))
}

func (m *QuotesMethods) handleOpen(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p quotes.OpenRequest
	if req.Params == nil || json.Unmarshal(req.Params, &p) != nil || p.GroupID == "" || p.RequesterID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "group_id, requester_id and quoted_price are required"))
		return
	}
	q, err := m.book.Open(p)
	reply(client, req, q, err)
}

func (m *QuotesMethods) handleReprice(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	p, ok := parseGroup(client, req)
	if !ok {
		return
	}
	if p.Price == nil {
		q, err := m.book.BeginReprice(p.GroupID)
		reply(client, req, q, err)
		return
	}
	q, err := m.book.Reprice(p.GroupID, *p.Price)
	reply(client, req, q, err)
}

func (m *QuotesMethods) handleAccept(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	p, ok := parseGroup(client, req)
	if !ok {
		return
	}
	q, err := m.book.Accept(p.GroupID)
	reply(client, req, q, err)
}

func (m *QuotesMethods) handleExpire(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	p, ok := parseGroup(client, req)
	if !ok {
		return
	}
	q, err := m.book.Expire(p.GroupID)
	reply(client, req, q, err)
}

func reply(client *gateway.Client, req *protocol.RequestFrame, q *store.Quote, err error) {
	switch {
	case err == nil:
		client.SendResponse(protocol.NewOKResponse(req.ID, q))
	case errors.Is(err, quotes.ErrNoQuote):
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, err.Error()))
	default:
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, err.Error()))
	}
}
