package protocol

// WebSocket event names pushed from server to client.
const (
	EventHealth   = "health"
	EventShutdown = "shutdown"

	// Routing decision for one inbound message (payload: dispatch.RoutedEvent).
	// Downstream workers (price, deal, receipt, tronscan) subscribe to it.
	EventMessageRouted = "message.routed"

	// Quote book changes (payload: store.Quote).
	EventQuoteUpdated = "quote.updated"

	// A group seen for the first time was registered with the default mode.
	EventGroupRegistered = "group.registered"

	// Cache invalidation events (internal, not forwarded to WS clients).
	EventCacheInvalidate = "cache.invalidate"
)
