package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// CompressSetting 兼容 Compress = true/false 与 Compress = "<transform>" 两种写法。
type CompressSetting string

// Enabled 表示是否需要对正文做任何处理。
func (c CompressSetting) Enabled() bool {
	switch c.normalized() {
	case "", "false", "0", "off", "none":
		return false
	default:
		return true
	}
}

// TransformName 返回需要使用的变换名；true 映射为内置 minify。
func (c CompressSetting) TransformName() string {
	switch v := c.normalized(); v {
	case "true", "1", "on":
		return "minify"
	default:
		return v
	}
}

func (c CompressSetting) normalized() string {
	return strings.ToLower(strings.TrimSpace(string(c)))
}

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	Debug           bool     `mapstructure:"Debug"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// PageCacheConfig 对应 [PageCache] 段，决定哪些响应会被写成静态缓存文件。
type PageCacheConfig struct {
	Enabled        bool            `mapstructure:"Enabled"`
	Duration       Duration        `mapstructure:"Duration"`
	Actions        []string        `mapstructure:"Actions"`
	Compress       CompressSetting `mapstructure:"Compress"`
	CacheDirectory string          `mapstructure:"CacheDirectory"`
	Force          bool            `mapstructure:"Force"`
}

// SiteConfig 描述被缓存的源站以及站点挂载前缀。
type SiteConfig struct {
	Upstream string `mapstructure:"Upstream"`
	Proxy    string `mapstructure:"Proxy"`
	BasePath string `mapstructure:"BasePath"`
}

// RouteConfig 将 URL 模式绑定到 action 名称，供白名单匹配。
type RouteConfig struct {
	Name    string   `mapstructure:"Name"`
	Path    string   `mapstructure:"Path"`
	Methods []string `mapstructure:"Methods"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig    `mapstructure:",squash"`
	PageCache PageCacheConfig `mapstructure:"PageCache"`
	Site      SiteConfig      `mapstructure:"Site"`
	Routes    []RouteConfig   `mapstructure:"Route"`
}

// ActionNames 返回按配置顺序排列的路由 action 名称。
func (c *Config) ActionNames() []string {
	if c == nil || len(c.Routes) == 0 {
		return nil
	}
	names := make([]string, len(c.Routes))
	for i, route := range c.Routes {
		names[i] = route.Name
	}
	return names
}
