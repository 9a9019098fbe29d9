package router

import (
	"net/http"
	"slices"
	"sort"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router registers method patterns on a shared http.ServeMux. Each router
// carries a middleware chain; groups extend it without touching the parent.
//
// The chain runs only for matched routes. Anything that must see every
// request (CORS preflight, for one) wraps the Router itself, see Chain.
type Router struct {
	mux      *http.ServeMux
	chain    []Middleware
	patterns *[]string // shared by every group of one mux
}

// New creates a Router whose routes all run through mw, outermost first.
func New(mw ...Middleware) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		chain:    mw,
		patterns: new([]string),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Put(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPut, pattern, h, mw...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, mw...)
}

// Handle registers h for "METHOD pattern". Route middleware runs inside the
// router's chain. Like http.ServeMux, it panics on a conflicting pattern.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	full := method + " " + pattern
	all := append(slices.Clone(r.chain), mw...)
	r.mux.Handle(full, Chain(h, all...))
	*r.patterns = append(*r.patterns, full)
}

// Group returns a router on the same mux whose chain is r's plus mw.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{
		mux:      r.mux,
		chain:    append(slices.Clone(r.chain), mw...),
		patterns: r.patterns,
	}
}

// Routes lists every registered "METHOD pattern", sorted.
func (r *Router) Routes() []string {
	out := slices.Clone(*r.patterns)
	sort.Strings(out)
	return out
}

// Chain wraps h so that mw[0] sees the request first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
