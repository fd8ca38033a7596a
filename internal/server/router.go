package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/pagecache"
)

// ProxyHandler describes the component that produces the response for a
// matched route, normally by forwarding to the origin site. It allows
// injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx, *Route) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx, *Route) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx, route *Route) error {
	return f(c, route)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Routes     *RouteTable
	Proxy      ProxyHandler
	Cache      *pagecache.Writer
	ListenPort int
}

const (
	contextKeyRoute     = "_pagecache_route"
	contextKeyRequestID = "_pagecache_request_id"
)

// fallbackRoute is attached to requests that match no configured route.
// Its empty name never passes a non-empty action allow-list.
var fallbackRoute = &Route{Pattern: "/*"}

// NewApp builds a Fiber application with request-id, page-cache and route
// middleware. Cache may be nil, in which case nothing is written to disk.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	if opts.Cache != nil {
		app.Use(pageCacheMiddleware(opts.Cache, opts.Routes.BasePath()))
	}

	for _, route := range opts.Routes.List() {
		handler := routeHandler(opts.Proxy, route)
		if len(route.Methods) == 0 {
			app.All(route.Pattern, handler)
			continue
		}
		app.Add(route.Methods, route.Pattern, handler)
	}

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		c.Locals(contextKeyRoute, fallbackRoute)
		return opts.Proxy.Handle(c, fallbackRoute)
	})

	return app, nil
}

// routeHandler 在调用代理前记录命中的路由，页面缓存中间件在响应结束后读取 action。
func routeHandler(proxy ProxyHandler, route Route) fiber.Handler {
	bound := &route
	return func(c fiber.Ctx) error {
		c.Locals(contextKeyRoute, bound)
		return proxy.Handle(c, bound)
	}
}

// requestContextMiddleware 负责生成请求 ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RouteFromContext returns the route matched for the current request.
func RouteFromContext(c fiber.Ctx) (*Route, bool) {
	if value := c.Locals(contextKeyRoute); value != nil {
		if route, ok := value.(*Route); ok {
			return route, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
