// Package routing decides, for one inbound group message, which downstream
// handler processes it and with what enrichment attached.
//
// The decision is an ordered rule table (see Router.Rules). Rules consult
// collaborators (group modes, trigger matcher, deal directory, quote book) and
// the first rule that decides wins. Collaborator failures never escape Route:
// each call site maps them to a fixed safe destination.
package routing

import (
	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// Destination is the downstream handler a message is routed to.
type Destination string

const (
	DestControl     Destination = "CONTROL"
	DestPrice       Destination = "PRICE"
	DestDeal        Destination = "DEAL"
	DestReceipt     Destination = "RECEIPT"
	DestTronscan    Destination = "TRONSCAN"
	DestObserveOnly Destination = "OBSERVE_ONLY"
	DestIgnore      Destination = "IGNORE"
)

// Destinations lists every destination in dispatch order.
var Destinations = []Destination{
	DestControl, DestPrice, DestDeal, DestReceipt, DestTronscan, DestObserveOnly, DestIgnore,
}

// DealAction tells the deal handler which sub-flow to run.
type DealAction string

const (
	DealPriceLock         DealAction = "price_lock"
	DealCancellation      DealAction = "cancellation"
	DealConfirmation      DealAction = "confirmation"
	DealVolumeInquiry     DealAction = "volume_inquiry"
	DealRejection         DealAction = "rejection"
	DealUnrecognizedInput DealAction = "unrecognized_input"
	DealVolumeInput       DealAction = "volume_input"
	DealDirectAmount      DealAction = "direct_amount"
)

// ReceiptType classifies an attachment recognized as a payment receipt.
type ReceiptType string

const (
	ReceiptNone  ReceiptType = ""
	ReceiptPDF   ReceiptType = "pdf"
	ReceiptImage ReceiptType = "image"
)

// MediaMessage is the declared metadata of one attached media item.
type MediaMessage struct {
	Mimetype string `json:"mimetype"`
	FileName string `json:"fileName,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Attachment is the raw attachment descriptor delivered by the chat bridge.
type Attachment struct {
	DocumentMessage *MediaMessage `json:"documentMessage,omitempty"`
	ImageMessage    *MediaMessage `json:"imageMessage,omitempty"`
}

// MessageContext is one inbound message plus the enrichment added while routing.
type MessageContext struct {
	GroupID        string      `json:"group_id"`
	GroupName      string      `json:"group_name,omitempty"`
	Text           string      `json:"text"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name,omitempty"`
	IsControlGroup bool        `json:"is_control_group"`
	Attachment     *Attachment `json:"attachment,omitempty"`

	// Enrichment.
	ReceiptType ReceiptType     `json:"receipt_type,omitempty"`
	DealAction  DealAction      `json:"deal_action,omitempty"`
	Trigger     *store.Trigger  `json:"trigger,omitempty"`
	Deal        *store.Deal     `json:"deal,omitempty"`
	Quote       *store.Quote    `json:"quote,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	HasAmount   bool            `json:"has_amount"`
}

// Result is the routing decision for one message.
type Result struct {
	Destination Destination    `json:"destination"`
	Context     MessageContext `json:"context"`
	Rule        string         `json:"rule"` // rule that decided, for diagnostics
}

func deal(msg MessageContext, action DealAction) Result {
	msg.DealAction = action
	return Result{Destination: DestDeal, Context: msg}
}
