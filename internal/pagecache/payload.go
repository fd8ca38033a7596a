package pagecache

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	headerPrefix = "<!--cachetime:"
	headerExtSep = ";ext:"
	headerSuffix = "-->"
)

// ErrNoHeader 表示内容不是以 cachetime 头开头。
var ErrNoHeader = errors.New("cachetime header not found")

// Header 是缓存文件开头的元数据。
type Header struct {
	CacheTime int64
	Ext       string
}

// Expired 在 cachetime 已早于 now 时返回 true。
func (h Header) Expired(now time.Time) bool {
	return h.CacheTime < now.Unix()
}

// String 编码为 <!--cachetime:<unix>;ext:<ext>-->。
func (h Header) String() string {
	return headerPrefix + strconv.FormatInt(h.CacheTime, 10) + headerExtSep + h.Ext + headerSuffix
}

// ExpiresAt 返回 now + 配置时长 的 Unix 秒。
func ExpiresAt(now time.Time, cfg Config) int64 {
	return now.Unix() + cfg.DurationSeconds()
}

// BuildPayload 拼接 cachetime 头与（可能经过压缩/转换的）正文。
func BuildPayload(body, ext string, cfg Config, now time.Time) string {
	header := Header{CacheTime: ExpiresAt(now, cfg), Ext: ext}
	return header.String() + cfg.Compress.Apply(body)
}

// ParseHeader 解析缓存文件开头的 cachetime 头，返回头部和正文起始偏移。
func ParseHeader(payload []byte) (Header, int, error) {
	if !bytes.HasPrefix(payload, []byte(headerPrefix)) {
		return Header{}, 0, ErrNoHeader
	}
	end := bytes.Index(payload, []byte(headerSuffix))
	if end < 0 {
		return Header{}, 0, ErrNoHeader
	}
	inner := payload[len(headerPrefix):end]
	sep := bytes.Index(inner, []byte(headerExtSep))
	if sep < 0 {
		return Header{}, 0, fmt.Errorf("%w: missing ext", ErrNoHeader)
	}
	cacheTime, err := strconv.ParseInt(string(inner[:sep]), 10, 64)
	if err != nil {
		return Header{}, 0, fmt.Errorf("parse cachetime: %w", err)
	}
	return Header{
		CacheTime: cacheTime,
		Ext:       string(inner[sep+len(headerExtSep):]),
	}, end + len(headerSuffix), nil
}
