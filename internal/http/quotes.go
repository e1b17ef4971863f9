package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// QuotesHandler exposes the quote book to the price engine.
type QuotesHandler struct {
	book  *quotes.Book
	token string
}

// NewQuotesHandler creates a handler for the quote book endpoints.
func NewQuotesHandler(book *quotes.Book, token string) *QuotesHandler {
	return &QuotesHandler{book: book, token: token}
}

// RegisterRoutes registers all quote routes on the given mux.
func (h *QuotesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/quotes", requireToken(h.token, h.handleOpen))
	mux.HandleFunc("GET /v1/quotes/{group}", requireToken(h.token, h.handleGet))
	mux.HandleFunc("POST /v1/quotes/{group}/reprice", requireToken(h.token, h.handleReprice))
	mux.HandleFunc("POST /v1/quotes/{group}/accept", requireToken(h.token, h.handleAccept))
	mux.HandleFunc("DELETE /v1/quotes/{group}", requireToken(h.token, h.handleExpire))
}

func (h *QuotesHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req quotes.OpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GroupID == "" || req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "group_id and requester_id are required")
		return
	}
	q, err := h.book.Open(req)
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *QuotesHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	q := h.book.Active(r.PathValue("group"))
	if q == nil {
		writeError(w, http.StatusNotFound, quotes.ErrNoQuote.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) handleReprice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price *decimal.Decimal `json:"price"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var (
		q   *store.Quote
		err error
	)
	if body.Price == nil {
		q, err = h.book.BeginReprice(r.PathValue("group"))
	} else {
		q, err = h.book.Reprice(r.PathValue("group"), *body.Price)
	}
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	q, err := h.book.Accept(r.PathValue("group"))
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) handleExpire(w http.ResponseWriter, r *http.Request) {
	q, err := h.book.Expire(r.PathValue("group"))
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func writeQuoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quotes.ErrNoQuote):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quotes.ErrNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, quotes.ErrBadPrice):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
