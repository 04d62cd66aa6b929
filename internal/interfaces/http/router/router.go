package router

import (
	"fmt"
	"net/http"
	"path"
	"sort"

	"github.com/gin-gonic/gin"
)

// Route is one method and path of a resource
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Resource is a tenant-scoped API resource: a path prefix and its route table
type Resource struct {
	name   string
	prefix string
	routes []Route
}

// NewResource creates an empty resource mounted at prefix
func NewResource(name, prefix string) *Resource {
	return &Resource{name: name, prefix: prefix}
}

// Name returns the resource name
func (r *Resource) Name() string { return r.name }

// Handle adds a route relative to the resource prefix
func (r *Resource) Handle(method, relativePath string, handler gin.HandlerFunc) *Resource {
	r.routes = append(r.routes, Route{Method: method, Path: relativePath, Handler: handler})
	return r
}

// GET adds a GET route
func (r *Resource) GET(relativePath string, handler gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodGet, relativePath, handler)
}

// POST adds a POST route
func (r *Resource) POST(relativePath string, handler gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPost, relativePath, handler)
}

// PUT adds a PUT route
func (r *Resource) PUT(relativePath string, handler gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPut, relativePath, handler)
}

// Router mounts resources under /api/<version> behind one middleware chain
type Router struct {
	engine    *gin.Engine
	version   string
	resources []*Resource
	mounted   []string
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a resource for Setup
func (r *Router) Register(res *Resource) *Router {
	r.resources = append(r.resources, res)
	return r
}

// Setup mounts every registered resource. It fails before touching the
// engine when two routes share a method and full path, which gin would
// otherwise turn into a panic.
func (r *Router) Setup(middleware ...gin.HandlerFunc) error {
	base := "/api/" + r.version
	seen := make(map[string]string)
	var mounted []string
	for _, res := range r.resources {
		for _, route := range res.routes {
			key := route.Method + " " + joinPath(base, res.prefix, route.Path)
			if owner, dup := seen[key]; dup {
				return fmt.Errorf("route %s registered by both %s and %s", key, owner, res.name)
			}
			seen[key] = res.name
			mounted = append(mounted, key)
		}
	}

	api := r.engine.Group(base, middleware...)
	for _, res := range r.resources {
		group := api.Group(res.prefix)
		for _, route := range res.routes {
			group.Handle(route.Method, route.Path, route.Handler)
		}
	}
	sort.Strings(mounted)
	r.mounted = mounted
	return nil
}

// Routes lists the mounted routes as "METHOD /path", sorted
func (r *Router) Routes() []string {
	return append([]string(nil), r.mounted...)
}

func joinPath(parts ...string) string {
	joined := path.Join(parts...)
	if last := parts[len(parts)-1]; len(last) > 0 && last[len(last)-1] == '/' && joined != "/" {
		joined += "/"
	}
	return joined
}
