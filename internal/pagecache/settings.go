package pagecache

import (
	"fmt"

	"github.com/any-hub/pagecache/internal/config"
	"github.com/any-hub/pagecache/internal/pagecache/transforms"
)

// NewConfig 将 TOML 中的 [PageCache] 段与全局 Debug 开关转换为运行时 Config。
func NewConfig(settings config.PageCacheConfig, debug bool) (Config, error) {
	compress, err := ResolveCompression(settings.Compress)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	cfg.Enabled = settings.Enabled
	cfg.Duration = settings.Duration.DurationValue()
	cfg.Compress = compress
	cfg.Debug = debug
	cfg.Force = settings.Force
	return cfg.WithActions(settings.Actions...), nil
}

// ResolveCompression 把 Compress 配置（true/false/变换名）映射为 Compression。
func ResolveCompression(setting config.CompressSetting) (Compression, error) {
	if !setting.Enabled() {
		return NoCompression(), nil
	}
	name := setting.TransformName()
	if name == transforms.MinifyName {
		return MinifyCompression(), nil
	}
	fn, ok := transforms.Fetch(name)
	if !ok {
		return Compression{}, fmt.Errorf("unknown compress transform: %s", name)
	}
	return CustomCompression(name, fn), nil
}
