package routes

import (
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pagecache/internal/cache"
	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/pagecache/transforms"
	"github.com/any-hub/pagecache/internal/server"
)

// headerPeekSize 足够容纳 cachetime 头；只读取文件开头。
const headerPeekSize = 256

// RegisterDiagnosticsRoutes 暴露 /-/pagecache 诊断接口，供运维确认缓存配置与单个缓存文件的状态。
func RegisterDiagnosticsRoutes(app *fiber.App, writer *pagecache.Writer, store cache.Store, table *server.RouteTable) {
	if app == nil || writer == nil {
		return
	}

	app.Get("/-/pagecache", func(c fiber.Ctx) error {
		names := transforms.Names()
		payload := fiber.Map{
			"config":     encodeConfig(writer.Config()),
			"routes":     encodeRoutes(table.List()),
			"transforms": transforms.Snapshot(names),
		}
		return c.JSON(payload)
	})

	app.Get("/-/pagecache/:file", func(c fiber.Ctx) error {
		if store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "cache_store_unavailable"})
		}
		locator, ok := parseFileName(c.Params("file"))
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cache_file_invalid"})
		}

		result, err := store.Get(c.Context(), locator)
		switch {
		case errors.Is(err, cache.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_file_not_found"})
		case errors.Is(err, cache.ErrInvalidLocator):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cache_file_invalid"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
		}
		defer result.Reader.Close()

		head := make([]byte, headerPeekSize)
		n, err := io.ReadFull(result.Reader, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
		}
		header, _, err := pagecache.ParseHeader(head[:n])
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "cache_header_invalid"})
		}

		return c.JSON(entryPayload{
			File:      locator.FileName(),
			CacheTime: header.CacheTime,
			Ext:       header.Ext,
			Expired:   header.Expired(time.Now()),
			SizeBytes: result.Entry.SizeBytes,
			ModTime:   result.Entry.ModTime.UTC(),
		})
	})
}

type configPayload struct {
	Enabled         bool     `json:"enabled"`
	Active          bool     `json:"active"`
	DurationSeconds int64    `json:"duration_seconds"`
	Actions         []string `json:"actions"`
	Compress        string   `json:"compress"`
	Debug           bool     `json:"debug"`
	Force           bool     `json:"force"`
}

type routePayload struct {
	Name    string   `json:"name"`
	Pattern string   `json:"pattern"`
	Methods []string `json:"methods"`
}

type entryPayload struct {
	File      string    `json:"file"`
	CacheTime int64     `json:"cache_time"`
	Ext       string    `json:"ext"`
	Expired   bool      `json:"expired"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

func encodeConfig(cfg pagecache.Config) configPayload {
	actions := make([]string, 0, len(cfg.Actions))
	for name := range cfg.Actions {
		actions = append(actions, name)
	}
	sort.Strings(actions)
	return configPayload{
		Enabled:         cfg.Enabled,
		Active:          cfg.Active(),
		DurationSeconds: cfg.DurationSeconds(),
		Actions:         actions,
		Compress:        cfg.Compress.String(),
		Debug:           cfg.Debug,
		Force:           cfg.Force,
	}
}

func encodeRoutes(routes []server.Route) []routePayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Name < routes[j].Name
	})
	result := make([]routePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, routePayload{
			Name:    route.Name,
			Pattern: route.Pattern,
			Methods: append([]string(nil), route.Methods...),
		})
	}
	return result
}

// parseFileName 把 key.ext 拆分为 Locator，扩展名取最后一个点之后的部分。
func parseFileName(name string) (cache.Locator, bool) {
	name = strings.TrimSpace(name)
	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return cache.Locator{}, false
	}
	return cache.Locator{Key: name[:dot], Ext: name[dot+1:]}, true
}
