package pagecache

import (
	"net/http"
	"time"
)

// Config 描述页面缓存写入行为。它按值传递，运行期不做原地修改。
type Config struct {
	Enabled  bool
	Duration time.Duration
	Actions  map[string]struct{}
	Compress Compression
	// Debug 对应宿主的调试模式；调试模式下默认不写缓存。
	Debug bool
	// Force 在调试模式下仍强制写缓存，便于本地验证。
	Force bool
}

// DefaultConfig 返回默认开启、永不附加时长、允许所有 action 的配置。
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// WithActions 返回替换了 action 白名单的副本。
func (c Config) WithActions(names ...string) Config {
	if len(names) == 0 {
		c.Actions = nil
		return c
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	c.Actions = set
	return c
}

// Active 综合 Enabled 与 Debug/Force 判断是否允许写入。
func (c Config) Active() bool {
	if !c.Enabled {
		return false
	}
	return !c.Debug || c.Force
}

// AllowsAction 在白名单为空或包含 action 时返回 true。
func (c Config) AllowsAction(action string) bool {
	if len(c.Actions) == 0 {
		return true
	}
	_, ok := c.Actions[action]
	return ok
}

// DurationSeconds 返回写入 cachetime 时使用的整秒时长。
func (c Config) DurationSeconds() int64 {
	if c.Duration <= 0 {
		return 0
	}
	return int64(c.Duration / time.Second)
}

// ShouldCache 仅对 GET、白名单内且处于启用状态的请求返回 true。
func ShouldCache(method, action string, cfg Config) bool {
	if method != http.MethodGet {
		return false
	}
	if !cfg.AllowsAction(action) {
		return false
	}
	return cfg.Active()
}
