package pagecache

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultExtension 在无法从路径或 Content-Type 推断时使用。
const DefaultExtension = "html"

// pathExtensions 列出允许从 URL 末段直接采用的扩展名。
var pathExtensions = map[string]struct{}{
	"html": {},
	"htm":  {},
	"json": {},
	"xml":  {},
	"rss":  {},
	"atom": {},
	"txt":  {},
	"css":  {},
	"js":   {},
	"csv":  {},
}

var mediaTypeExtensions = map[string]string{
	"text/html":              "html",
	"application/xhtml+xml":  "html",
	"application/json":       "json",
	"text/json":              "json",
	"application/xml":        "xml",
	"text/xml":               "xml",
	"application/rss+xml":    "rss",
	"application/atom+xml":   "atom",
	"text/plain":             "txt",
	"text/css":               "css",
	"text/javascript":        "js",
	"application/javascript": "js",
	"text/csv":               "csv",
}

// PathExtension 返回路径末段中可识别的扩展名（小写），否则返回空串。
func PathExtension(path string) string {
	last := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		last = path[idx+1:]
	}
	dot := strings.LastIndex(last, ".")
	if dot < 0 || dot == len(last)-1 {
		return ""
	}
	ext := strings.ToLower(last[dot+1:])
	if _, ok := pathExtensions[ext]; ok {
		return ext
	}
	return ""
}

// DeriveExtension 优先采用路径显式扩展名，其次按 Content-Type 映射，最后回退 html。
func DeriveExtension(contentType, pathExt string) string {
	if ext := strings.ToLower(strings.TrimPrefix(pathExt, ".")); ext != "" {
		if _, ok := pathExtensions[ext]; ok {
			return ext
		}
	}

	mediaType := normalizeMediaType(contentType)
	if mediaType == "" {
		return DefaultExtension
	}
	if ext, ok := mediaTypeExtensions[mediaType]; ok {
		return ext
	}
	if known := mimetype.Lookup(mediaType); known != nil {
		if ext := strings.TrimPrefix(known.Extension(), "."); ext != "" {
			return ext
		}
	}
	return DefaultExtension
}

func normalizeMediaType(contentType string) string {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
