package pagecache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// RootKey 是空路径（站点根）对应的缓存键。
const RootKey = "_root"

// MaxKeyLength 限制缓存键字节数，给扩展名留出余量，保证文件名不超过 255 字节。
// 超长的键截断后追加完整键的 sha1，不同请求仍映射到不同文件。
const MaxKeyLength = 200

// QueryParam 保留查询参数原始顺序，缓存键按调用方提供的顺序拼接。
type QueryParam struct {
	Key   string
	Value string
}

// DeriveKey 将请求路径与查询参数映射为文件系统安全的缓存键。
// 例如 /foo/bar/baz.json?x=y → foo-bar-baz-json-x-y。
func DeriveKey(path string, query []QueryParam, basePath string) string {
	trimmed := strings.Trim(stripBasePath(path, basePath), "/")

	var b strings.Builder
	if trimmed == "" {
		b.WriteString(RootKey)
	} else {
		b.WriteString(sanitizeKeyPart(strings.ReplaceAll(trimmed, "/", "-")))
	}
	for _, param := range query {
		b.WriteByte('-')
		b.WriteString(sanitizeKeyPart(param.Key))
		b.WriteByte('-')
		b.WriteString(sanitizeKeyPart(param.Value))
	}
	return limitKeyLength(b.String())
}

func limitKeyLength(key string) string {
	if len(key) <= MaxKeyLength {
		return key
	}
	sum := sha1.Sum([]byte(key))
	digest := hex.EncodeToString(sum[:])
	return key[:MaxKeyLength-len(digest)-1] + "-" + digest
}

// stripBasePath 仅在路径段边界上移除挂载前缀，/myapp 不会误删 /myapplication。
func stripBasePath(path, basePath string) string {
	base := strings.TrimRight(basePath, "/")
	if base == "" {
		return path
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if path == base {
		return ""
	}
	if strings.HasPrefix(path, base+"/") {
		return path[len(base):]
	}
	return path
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
