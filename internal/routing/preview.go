package routing

// NewPreview returns a router for dry runs: a deal_confirm trigger reports
// the decision without force-accepting the group's quote. Every other rule
// reads the live collaborators.
func NewPreview(d Deps) *Router {
	r := New(d)
	r.resolver = NewResolver(nil, r.logger)
	return r
}
