package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("UpstreamTimeout 应该自动填充默认值")
	}
	if !filepath.IsAbs(cfg.PageCache.CacheDirectory) {
		t.Fatalf("CacheDirectory 应被解析为绝对路径: %s", cfg.PageCache.CacheDirectory)
	}
	if cfg.PageCache.Duration.DurationValue() != 24*time.Hour {
		t.Fatalf("Duration 解析错误: %s", cfg.PageCache.Duration.DurationValue())
	}
	if cfg.PageCache.Compress.TransformName() != "minify" {
		t.Fatalf("Compress = true 应映射为 minify，得到 %q", cfg.PageCache.Compress)
	}
	if cfg.Site.BasePath != "/myapp" {
		t.Fatalf("BasePath 应去掉结尾斜杠，得到 %q", cfg.Site.BasePath)
	}
	if got := cfg.Routes[0].Methods; len(got) != 1 || got[0] != "GET" {
		t.Fatalf("Methods 应统一为大写，得到 %v", got)
	}
	if names := cfg.ActionNames(); len(names) != 2 || names[0] != "view" {
		t.Fatalf("unexpected action names: %v", names)
	}
	if !cfg.Global.Debug || !cfg.PageCache.Force {
		t.Fatalf("Debug/Force 应被解析")
	}
}

func TestValidateRejectsMissingUpstream(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("缺少 Site.Upstream 的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRejectsNegativeDuration(t *testing.T) {
	cfg := validConfig()
	cfg.PageCache.Duration = Duration(-time.Second)
	var fieldErr FieldError
	if err := cfg.Validate(); !errors.As(err, &fieldErr) || fieldErr.Field != "PageCache.Duration" {
		t.Fatalf("expected PageCache.Duration field error, got %v", err)
	}
}

func TestValidateRequiresCacheDirectoryWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.PageCache.CacheDirectory = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("启用缓存但缺少目录时应报错")
	}

	cfg.PageCache.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("关闭缓存时不应要求目录: %v", err)
	}
}

func TestValidateCompressTransform(t *testing.T) {
	testCases := []struct {
		name      string
		compress  CompressSetting
		shouldErr bool
	}{
		{"disabled", "false", false},
		{"bool true", "true", false},
		{"builtin name", "strip-comments", false},
		{"unknown", "gzip-everything", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.PageCache.Compress = tc.compress
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for compress %q", tc.compress)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for compress %q: %v", tc.compress, err)
			}
		})
	}
}

func TestValidateRoutes(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Routes[0].Name = "" }},
		{"duplicate name", func(c *Config) { c.Routes = append(c.Routes, c.Routes[0]) }},
		{"relative path", func(c *Config) { c.Routes[0].Path = "pages" }},
		{"bad method", func(c *Config) { c.Routes[0].Methods = []string{"BREW"} }},
		{"unknown action", func(c *Config) { c.PageCache.Actions = []string{"missing"} }},
		{"actions without routes", func(c *Config) { c.Routes = nil }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateBasePath(t *testing.T) {
	cfg := validConfig()
	cfg.Site.BasePath = "/app?x=1"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("BasePath 含查询串时应报错")
	}
}

func TestCompressSetting(t *testing.T) {
	testCases := []struct {
		raw     CompressSetting
		enabled bool
		name    string
	}{
		{"", false, ""},
		{"false", false, "false"},
		{"TRUE", true, "minify"},
		{" Strip-Comments ", true, "strip-comments"},
	}
	for _, tc := range testCases {
		if tc.raw.Enabled() != tc.enabled {
			t.Fatalf("Enabled(%q) mismatch", tc.raw)
		}
		if tc.enabled && tc.raw.TransformName() != tc.name {
			t.Fatalf("TransformName(%q) = %q, want %q", tc.raw, tc.raw.TransformName(), tc.name)
		}
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			LogLevel:        "info",
			UpstreamTimeout: Duration(time.Second),
		},
		PageCache: PageCacheConfig{
			Enabled:        true,
			Duration:       Duration(time.Hour),
			Actions:        []string{"view"},
			CacheDirectory: "./storage/views",
		},
		Site: SiteConfig{
			Upstream: "http://127.0.0.1:8080",
		},
		Routes: []RouteConfig{
			{Name: "view", Path: "/pages/view/:id"},
		},
	}
}
