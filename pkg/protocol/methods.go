package protocol

// RPC method name constants.
const (
	MethodConnect = "connect"
	MethodHealth  = "health"
	MethodStatus  = "status"

	// Routing
	MethodRoutePreview = "route.preview"
	MethodRouteRules   = "route.rules"

	// Quote book
	MethodQuotesGet     = "quotes.get"
	MethodQuotesOpen    = "quotes.open"
	MethodQuotesReprice = "quotes.reprice"
	MethodQuotesAccept  = "quotes.accept"
	MethodQuotesExpire  = "quotes.expire"

	// Groups
	MethodGroupsList    = "groups.list"
	MethodGroupsSetMode = "groups.set_mode"

	// Outbound delivery through a channel (used by downstream workers to reply).
	MethodSend = "send"

	// Cache
	MethodCacheInvalidate = "cache.invalidate"
)
