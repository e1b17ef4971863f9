package routing

import "github.com/nextlevelbuilder/otcdesk/internal/store"

// catchAll routes a message nothing else matched. The requester of an open
// quote is presumably still talking about it; everyone else is ignored.
func catchAll(quotes QuoteBook, msg MessageContext) (Result, error) {
	q, err := guardValue("quotes.active", func() *store.Quote {
		return quotes.Active(msg.GroupID)
	})
	if err != nil || !q.IsOpen() || q.RequesterID != msg.SenderID {
		return Result{Destination: DestIgnore, Context: msg}, err
	}
	msg.Quote = q
	return deal(msg, DealUnrecognizedInput), nil
}
