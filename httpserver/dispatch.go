package httpserver

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

type paramsKey struct{}

// PathParam returns the named path parameter extracted by a regex route
// registered via Dispatch.HandleRegex with a ":name" segment, or "" if none
// matched under that name.
func PathParam(r *http.Request, name string) string {
	if v, ok := r.Context().Value(paramsKey{}).(map[string]string); ok {
		return v[name]
	}
	return ""
}

type regexRoute struct {
	method  string
	re      *regexp.Regexp
	params  []string
	handler http.HandlerFunc
}

// Dispatch is a servlet dispatcher grounded on the source's
// ServletDispatch: an exact (method, path) map checked first, then
// ":name"-parameterized regex routes in registration order, falling
// back to a NotFound handler when nothing matches.
type Dispatch struct {
	mu       sync.RWMutex
	exact    map[string]map[string]http.HandlerFunc // path -> method -> handler
	regexes  []regexRoute
	NotFound http.HandlerFunc
}

// NewDispatch constructs an empty Dispatch with a plain 404 NotFound handler.
func NewDispatch() *Dispatch {
	return &Dispatch{
		exact: make(map[string]map[string]http.HandlerFunc),
		NotFound: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "404 not found", http.StatusNotFound)
		},
	}
}

// Handle registers handler for an exact path and method (e.g. "GET").
func (d *Dispatch) Handle(method, path string, handler http.HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byMethod, ok := d.exact[path]
	if !ok {
		byMethod = make(map[string]http.HandlerFunc)
		d.exact[path] = byMethod
	}
	byMethod[strings.ToUpper(method)] = handler
}

var paramSegment = regexp.MustCompile(`/:([^/]+)`)

// HandleRegex registers handler for a path pattern containing ":name"
// segments (e.g. "/users/:id/messages/:messageId"), converted to an
// anchored regex the way the source's ServletDispatch::convertToRegex
// does.
func (d *Dispatch) HandleRegex(method, pattern string, handler http.HandlerFunc) {
	var names []string
	regexPattern := paramSegment.ReplaceAllStringFunc(pattern, func(seg string) string {
		names = append(names, seg[2:])
		return "/([^/]+)"
	})
	re := regexp.MustCompile("^" + regexPattern + "$")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.regexes = append(d.regexes, regexRoute{
		method:  strings.ToUpper(method),
		re:      re,
		params:  names,
		handler: handler,
	})
}

// ServeHTTP implements http.Handler.
func (d *Dispatch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if byMethod, ok := d.exact[r.URL.Path]; ok {
		if h, ok := byMethod[r.Method]; ok {
			h(w, r)
			return
		}
	}

	for _, rr := range d.regexes {
		if rr.method != r.Method {
			continue
		}
		m := rr.re.FindStringSubmatch(r.URL.Path)
		if m == nil {
			continue
		}
		params := make(map[string]string, len(rr.params))
		for i, name := range rr.params {
			if i+1 < len(m) {
				params[name] = m[i+1]
			}
		}
		ctx := context.WithValue(r.Context(), paramsKey{}, params)
		rr.handler(w, r.WithContext(ctx))
		return
	}

	d.NotFound(w, r)
}
