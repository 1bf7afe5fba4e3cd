// Package router registers the versioned API routes and remembers them for the route listing.
package router

import (
	"net/http"
	"path"
	"sync"

	"github.com/gin-gonic/gin"
)

// RouteInfo describes one registered endpoint
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Group  string `json:"group"`
}

// Router mounts route groups under /api/<version>
type Router struct {
	api *gin.RouterGroup

	mu     sync.Mutex
	routes []RouteInfo
}

// New creates the /api/<version> group on engine. Routes added directly to the
// engine, such as /health, are not part of it.
func New(engine *gin.Engine, version string, middleware ...gin.HandlerFunc) *Router {
	return &Router{api: engine.Group("/api/"+version, middleware...)}
}

// BasePath returns the versioned prefix, e.g. /api/v1
func (r *Router) BasePath() string {
	return r.api.BasePath()
}

// Group creates a named group; middleware applies to its routes only
func (r *Router) Group(name, prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{name: name, rg: r.api.Group(prefix, middleware...), router: r}
}

// Routes lists the endpoints in registration order
func (r *Router) Routes() []RouteInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RouteInfo(nil), r.routes...)
}

func (r *Router) record(info RouteInfo) {
	r.mu.Lock()
	r.routes = append(r.routes, info)
	r.mu.Unlock()
}

// Group registers routes on gin immediately and records them on the Router
type Group struct {
	name   string
	rg     *gin.RouterGroup
	router *Router
}

// Handle registers handlers for method and the path relative to the group
func (g *Group) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *Group {
	g.rg.Handle(method, relativePath, handlers...)
	g.router.record(RouteInfo{
		Method: method,
		Path:   path.Join(g.rg.BasePath(), relativePath),
		Group:  g.name,
	})
	return g
}

func (g *Group) GET(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, relativePath, handlers...)
}

func (g *Group) POST(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, relativePath, handlers...)
}

func (g *Group) PUT(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPut, relativePath, handlers...)
}
