package server

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pagecache/internal/pagecache"
)

// pageCacheMiddleware 在下游 handler 完成后把响应交给 pagecache.Writer。
// 写入是同步的尽力而为操作，失败只记录日志，不改变已生成的响应。
func pageCacheMiddleware(writer *pagecache.Writer, basePath string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}

		if err := c.Next(); err != nil {
			return err
		}
		// 只有完整生成的 200 响应才视为可缓存页面。
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		action := ""
		if route, ok := RouteFromContext(c); ok {
			action = route.Name
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		// 是否写入由 Writer 判定，跳过的请求留下 page_cache_skipped 调试日志。
		writer.OnResponseComplete(ctx, captureInput(c, basePath, action))
		return nil
	}
}

// captureInput 复制请求与响应的最终状态；fasthttp 的缓冲区在请求结束后会被复用。
func captureInput(c fiber.Ctx, basePath, action string) pagecache.Input {
	uri := c.Request().URI()

	var query []pagecache.QueryParam
	uri.QueryArgs().VisitAll(func(key, value []byte) {
		query = append(query, pagecache.QueryParam{Key: string(key), Value: string(value)})
	})

	path := string(uri.Path())
	if path == "" {
		path = "/"
	}

	return pagecache.Input{
		Method:      c.Method(),
		Path:        path,
		Query:       query,
		BasePath:    basePath,
		Action:      action,
		Body:        string(c.Response().Body()),
		ContentType: string(c.Response().Header.ContentType()),
		RequestID:   RequestID(c),
	}
}
