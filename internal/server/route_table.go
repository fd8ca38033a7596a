package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/any-hub/pagecache/internal/config"
)

// Route 将配置中的 [[Route]] 与挂载后的完整路径聚合在一起，供路由与缓存层复用。
type Route struct {
	// Config 是 config.toml 中声明的路由副本。
	Config config.RouteConfig
	// Name 即 action 名称，页面缓存白名单按此匹配。
	Name string
	// Pattern 是带 BasePath 前缀的 Fiber 路由模式。
	Pattern string
	// Methods 为空表示接受所有方法。
	Methods []string
}

// RouteTable 按配置顺序保存路由，action 名称在表内唯一。
type RouteTable struct {
	basePath string
	ordered  []*Route
}

// NewRouteTable 根据配置构建路由表。调用方应在启动阶段创建一次并复用。
func NewRouteTable(cfg *config.Config) (*RouteTable, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	table := &RouteTable{
		basePath: strings.TrimRight(cfg.Site.BasePath, "/"),
	}
	seen := make(map[string]struct{}, len(cfg.Routes))

	for _, rc := range cfg.Routes {
		name := strings.TrimSpace(rc.Name)
		if name == "" {
			return nil, fmt.Errorf("route name required for path %s", rc.Path)
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate route name %s", name)
		}
		route := &Route{
			Config:  rc,
			Name:    name,
			Pattern: table.basePath + rc.Path,
			Methods: append([]string(nil), rc.Methods...),
		}
		seen[name] = struct{}{}
		table.ordered = append(table.ordered, route)
	}

	return table, nil
}

// BasePath 返回站点挂载前缀（无结尾斜杠）。
func (t *RouteTable) BasePath() string {
	if t == nil {
		return ""
	}
	return t.basePath
}

// List 返回按配置顺序排列的路由副本，用于注册与诊断输出。
func (t *RouteTable) List() []Route {
	if t == nil || len(t.ordered) == 0 {
		return nil
	}

	result := make([]Route, len(t.ordered))
	for i, route := range t.ordered {
		result[i] = *route
	}
	return result
}
