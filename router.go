// Copyright 2021 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/thalia/spantrace/trace/scope"
)

// AddrHTTP is the listening address / port of HTTP for Start. Default is ":8080"
var AddrHTTP = ":8080"

// Router routes requests to handlers.
// The path template of the matched route is stored in the request scope, and passed to trace log exporters.
type Router struct {
	router   *mux.Router
	monitors monitors
}

// NewRouter creates new Router instance.
func NewRouter() *Router {
	r := mux.NewRouter()
	r.Use(routeRecorder)
	return &Router{router: r}
}

// routeRecorder stores the matched route template in the scope of the request.
func routeRecorder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sc := scope.FromContext(r.Context()); sc != nil {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					sc.SetRoute(tpl)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Monitor adds monitor functions to the router.
// These functions are called pre / post serving each request of routes added later.
func (r *Router) Monitor(pre MonitorFuncPre, post MonitorFuncPost) *Router {
	r.monitors.append(pre, post)
	return r
}

// HandleFunc assigns an HTTP path to a function.
// E.g. r.HandleFunc("/users/{id:[0-9]+}", myFunc)
func (r *Router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) *Route {
	return r.Handle(path, http.HandlerFunc(f))
}

// Handle adds http.Handler to route.
func (r *Router) Handle(path string, handler http.Handler) *Route {
	return (*Route)(r.router.Handle(path, r.monitors.wrap(handler)))
}

// Get returns the route registered with the given name, or nil.
func (r *Router) Get(name string) *Route {
	return (*Route)(r.router.Get(name))
}

// Methods registers a new route with a matcher for HTTP methods.
// E.g. r.Methods(http.MethodPost, http.MethodPut)
func (r *Router) Methods(methods ...string) *Route {
	return (*Route)(r.router.Methods(methods...))
}

// Name registers a new route with a name.
// That name can be used to query route.
func (r *Router) Name(name string) *Route {
	return (*Route)(r.router.Name(name))
}

// Path registers a new route with a matcher for the URL path template.
// E.g. r.Path("/users/{id:[0-9]+}")
func (r *Router) Path(pathTemplate string) *Route {
	return (*Route)(r.router.Path(pathTemplate))
}

// PathPrefix registers a new route with a matcher for the URL path template prefix.
func (r *Router) PathPrefix(pathTemplate string) *Route {
	return (*Route)(r.router.PathPrefix(pathTemplate))
}

// Start starts router on port 8080 (AddrHTTP), with tracing configured from environment.
// Handles connections gracefully on TERM/INT signals.
func (r *Router) Start() error {
	return NewServer().Addr(AddrHTTP).Handler(r).Graceful(0).ListenAndServe()
}

// ServeHTTP serves HTTP request with matching handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
