package crawler

// Registry remembers every URL that has been scheduled during one crawl.
// Membership means "already scheduled", not "successfully fetched": a URL
// whose fetch failed stays registered so it is never tried again.
//
// Registry is not safe for concurrent use. A Spider owns exactly one
// registry per run.
type Registry struct {
	seen  map[string]struct{}
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		seen:  make(map[string]struct{}),
		order: make([]string, 0),
	}
}

// TryRegister inserts u and reports whether this call inserted it.
// A false return means u was registered before.
func (r *Registry) TryRegister(u string) bool {
	if _, ok := r.seen[u]; ok {
		return false
	}
	r.seen[u] = struct{}{}
	r.order = append(r.order, u)
	return true
}

// Contains reports whether u has been registered.
func (r *Registry) Contains(u string) bool {
	_, ok := r.seen[u]
	return ok
}

// Len returns the number of registered URLs.
func (r *Registry) Len() int {
	return len(r.order)
}

// Ordered returns the registered URLs in discovery order.
// The returned slice is a copy.
func (r *Registry) Ordered() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
