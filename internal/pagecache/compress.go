package pagecache

import "github.com/any-hub/pagecache/internal/pagecache/transforms"

// compressMode 区分写入前对正文的处理方式。
type compressMode uint8

const (
	compressNone compressMode = iota
	compressMinify
	compressCustom
)

// Compression 是 none | minify | custom(fn) 三选一的正文处理配置。
type Compression struct {
	mode compressMode
	name string
	fn   transforms.Func
}

// NoCompression 原样写入正文。
func NoCompression() Compression {
	return Compression{}
}

// MinifyCompression 使用内置的注释删除 + 空白折叠。
func MinifyCompression() Compression {
	return Compression{mode: compressMinify, name: transforms.MinifyName, fn: transforms.MinifyHTML}
}

// CustomCompression 使用调用方提供的转换函数；fn 为空时退化为 NoCompression。
func CustomCompression(name string, fn func(string) string) Compression {
	if fn == nil {
		return NoCompression()
	}
	return Compression{mode: compressCustom, name: name, fn: fn}
}

// String 用于日志与诊断输出。
func (c Compression) String() string {
	switch c.mode {
	case compressMinify:
		return "minify"
	case compressCustom:
		if c.name == "" {
			return "custom"
		}
		return "custom:" + c.name
	default:
		return "none"
	}
}

// Apply 对正文执行配置的处理。
func (c Compression) Apply(body string) string {
	if c.mode == compressNone || c.fn == nil {
		return body
	}
	return c.fn(body)
}
