package pagecache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/cache"
	"github.com/any-hub/pagecache/internal/logging"
)

var (
	// ErrSkipped 表示请求不满足写入条件（非 GET、不在白名单或未启用）。
	ErrSkipped = errors.New("page cache write skipped")
	// ErrStoreUnavailable 表示未注入缓存存储实例。
	ErrStoreUnavailable = errors.New("cache store unavailable")
)

// Input 是单次请求结束时宿主提供的只读快照。
type Input struct {
	Method      string
	Path        string
	Query       []QueryParam
	BasePath    string
	Action      string
	Body        string
	ContentType string
	RequestID   string
}

// Writer 在请求生命周期结束时决定是否写入页面缓存，并负责组装文件内容。
type Writer struct {
	store  cache.Store
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time
}

// NewWriter 构造 Writer，默认使用 time.Now 作为时钟。
func NewWriter(store cache.Store, cfg Config, logger *logrus.Logger) *Writer {
	return &Writer{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Config 返回 Writer 使用的配置副本。
func (w *Writer) Config() Config {
	return w.cfg
}

// Enabled 返回当前是否具备写入能力。
func (w *Writer) Enabled() bool {
	return w.store != nil && w.cfg.Active()
}

// Persist 执行 决策 → key → ext → payload → 写文件 全流程。
// 不满足写入条件时返回 ErrSkipped。
func (w *Writer) Persist(ctx context.Context, in Input) (*cache.Entry, error) {
	if !ShouldCache(in.Method, in.Action, w.cfg) {
		return nil, ErrSkipped
	}
	if w.store == nil {
		return nil, ErrStoreUnavailable
	}

	now := w.now()
	locator := cache.Locator{
		Key: DeriveKey(in.Path, in.Query, in.BasePath),
		Ext: DeriveExtension(in.ContentType, PathExtension(in.Path)),
	}
	payload := BuildPayload(in.Body, locator.Ext, w.cfg, now)
	return w.store.Put(ctx, locator, strings.NewReader(payload), cache.PutOptions{ModTime: now})
}

// OnResponseComplete 是挂在请求结束事件上的回调。写入失败只记录日志，
// 不影响已经发出的响应。
func (w *Writer) OnResponseComplete(ctx context.Context, in Input) *cache.Entry {
	if ctx == nil {
		ctx = context.Background()
	}
	entry, err := w.Persist(ctx, in)
	w.logResult(in, entry, err)
	if err != nil {
		return nil
	}
	return entry
}

func (w *Writer) logResult(in Input, entry *cache.Entry, err error) {
	if w.logger == nil {
		return
	}
	fields := logging.RequestFields(in.Method, in.Path, in.Action, entry != nil)
	fields["action"] = "page_cache"
	if in.RequestID != "" {
		fields["request_id"] = in.RequestID
	}

	switch {
	case errors.Is(err, ErrSkipped):
		w.logger.WithFields(fields).Debug("page_cache_skipped")
	case err != nil:
		fields["error"] = err.Error()
		w.logger.WithFields(fields).Warn("page_cache_write_failed")
	default:
		fields["cache_key"] = entry.Locator.Key
		fields["cache_ext"] = entry.Locator.Ext
		fields["file"] = entry.FilePath
		fields["size_bytes"] = entry.SizeBytes
		w.logger.WithFields(fields).Info("page_cache_stored")
	}
}
