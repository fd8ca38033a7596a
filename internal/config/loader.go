package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 为环境变量覆盖的前缀，例如 PAGECACHE_DEBUG=true。
const EnvPrefix = "PAGECACHE"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectRouteLevelCacheKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), compressDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applySiteDefaults(&cfg.Site)
	for i := range cfg.Routes {
		applyRouteDefaults(&cfg.Routes[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.PageCache.CacheDirectory != "" {
		absDir, err := filepath.Abs(cfg.PageCache.CacheDirectory)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.PageCache.CacheDirectory = absDir
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Debug", false)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("PageCache.Enabled", true)
	v.SetDefault("PageCache.Duration", 0)
	v.SetDefault("PageCache.Compress", "false")
	v.SetDefault("PageCache.CacheDirectory", "./storage/views")
	v.SetDefault("PageCache.Force", false)
	v.SetDefault("Site.BasePath", "")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func applySiteDefaults(s *SiteConfig) {
	base := strings.TrimSpace(s.BasePath)
	if base == "/" {
		base = ""
	}
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	s.BasePath = strings.TrimRight(base, "/")
}

func applyRouteDefaults(r *RouteConfig) {
	r.Name = strings.TrimSpace(r.Name)
	for i, method := range r.Methods {
		r.Methods[i] = strings.ToUpper(strings.TrimSpace(method))
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// compressDecodeHook 让 Compress 同时接受 TOML 布尔值与变换名字符串。
func compressDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(CompressSetting(""))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case bool:
			return CompressSetting(strconv.FormatBool(v)), nil
		case string:
			return CompressSetting(v), nil
		case CompressSetting:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Compress 类型: %T", v)
		}
	}
}

// rejectRouteLevelCacheKeys 拒绝在 [[Route]] 中声明缓存参数，缓存策略统一由 [PageCache] 控制。
func rejectRouteLevelCacheKeys(v *viper.Viper) error {
	raw := v.Get("Route")
	routes, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range routes {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		name := fmt.Sprintf("#%d", idx)
		for key, value := range m {
			if strings.EqualFold(key, "Name") {
				if rawName, ok := value.(string); ok && rawName != "" {
					name = rawName
				}
			}
		}
		// viper 读取后键名可能已被转为小写，这里按大小写不敏感匹配。
		for key := range m {
			for _, blocked := range []string{"Duration", "Compress", "Cache"} {
				if strings.EqualFold(key, blocked) {
					return newFieldError(routeField(name, blocked), "不支持路由级缓存参数，请使用 [PageCache] 与 Actions 白名单")
				}
			}
		}
	}

	return nil
}
