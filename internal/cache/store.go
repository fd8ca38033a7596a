package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理页面缓存文件的读写。磁盘布局遵循：
//
//	<CacheDirectory>/<Key>.<Ext>    # cachetime 头 + 页面正文
//
// 每个条目仅由一个文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将页面写入缓存，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。可选地根据 opts.ModTime 设置文件时间戳。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个缓存文件（Key + 扩展名）。
type Locator struct {
	Key string
	Ext string
}

// FileName 返回 <key>.<ext> 形式的文件名。
func (l Locator) FileName() string {
	return l.Key + "." + l.Ext
}

// Entry 表示一次写入或命中的结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidLocator 表示 key/ext 不能安全映射为单个文件名。
	ErrInvalidLocator = errors.New("invalid cache locator")
)
