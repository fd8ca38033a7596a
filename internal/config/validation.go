package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/any-hub/pagecache/internal/pagecache/transforms"
)

var supportedMethods = map[string]struct{}{
	"GET":     {},
	"HEAD":    {},
	"POST":    {},
	"PUT":     {},
	"PATCH":   {},
	"DELETE":  {},
	"OPTIONS": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if err := c.validatePageCache(); err != nil {
		return err
	}

	if err := validateUpstream(c.Site.Upstream); err != nil {
		return fmt.Errorf("Site.Upstream: %w", err)
	}
	if c.Site.Proxy != "" {
		if err := validateUpstream(c.Site.Proxy); err != nil {
			return fmt.Errorf("Site.Proxy: %w", err)
		}
	}
	if err := validateBasePath(c.Site.BasePath); err != nil {
		return fmt.Errorf("Site.BasePath: %w", err)
	}

	return c.validateRoutes()
}

func (c *Config) validatePageCache() error {
	p := c.PageCache
	if p.Duration.DurationValue() < 0 {
		return newFieldError("PageCache.Duration", "不能为负数")
	}
	if p.Enabled && strings.TrimSpace(p.CacheDirectory) == "" {
		return newFieldError("PageCache.CacheDirectory", "启用缓存时不能为空")
	}
	if p.Compress.Enabled() {
		name := p.Compress.TransformName()
		if _, ok := transforms.Fetch(name); !ok {
			return newFieldError("PageCache.Compress", fmt.Sprintf("未注册的变换: %s", name))
		}
	}
	if len(p.Actions) > 0 && len(c.Routes) == 0 {
		return newFieldError("PageCache.Actions", "配置白名单时需要声明 [[Route]]")
	}
	return nil
}

func (c *Config) validateRoutes() error {
	seenNames := map[string]struct{}{}
	for i := range c.Routes {
		route := &c.Routes[i]
		if route.Name == "" {
			return newFieldError("Route[].Name", "不能为空")
		}
		if _, exists := seenNames[route.Name]; exists {
			return newFieldError(routeField(route.Name, "Name"), "重复")
		}
		seenNames[route.Name] = struct{}{}

		if !strings.HasPrefix(route.Path, "/") {
			return newFieldError(routeField(route.Name, "Path"), "必须以 / 开头")
		}
		for _, method := range route.Methods {
			if _, ok := supportedMethods[method]; !ok {
				return newFieldError(routeField(route.Name, "Methods"), "不支持的方法: "+method)
			}
		}
	}

	for _, action := range c.PageCache.Actions {
		if _, ok := seenNames[action]; !ok {
			return newFieldError("PageCache.Actions", "未声明的 action: "+action)
		}
	}
	return nil
}

func validateBasePath(base string) error {
	if base == "" {
		return nil
	}
	if !strings.HasPrefix(base, "/") {
		return errors.New("必须以 / 开头")
	}
	if strings.ContainsAny(base, "?# ") {
		return errors.New("不允许包含查询串、片段或空格")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
