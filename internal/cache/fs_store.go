package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewStore 返回以 cacheDir 为根的页面缓存目录，所有缓存文件平铺在该目录下。
// 前端 web server 直接按 <key>.<ext> 读取这些文件。
func NewStore(cacheDir string) (Store, error) {
	if cacheDir == "" {
		return nil, errors.New("cache directory required")
	}

	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &fileStore{
		root:  abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// fileStore 只负责落盘；同名页面的并发写入由 entryLock 串行化，最后一次写入生效。
type fileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Get 打开已写入的页面，供诊断接口读取 cachetime 头。
func (s *fileStore) Get(ctx context.Context, locator Locator) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry: Entry{
			Locator:   locator,
			FilePath:  filePath,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		},
		Reader: f,
	}, nil
}

// Put 写入完整页面（cachetime 头 + 正文），ModTime 对齐写入时刻，便于与 cachetime 对照。
func (s *fileStore) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	unlock := s.acquire(locator)
	defer unlock()

	// 缓存目录可能在运行期间被外部清理，每次写入前重新确保存在。
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	// 临时文件与目标同目录，rename 才是原子的；点前缀避免被 try_files 命中。
	tempFile, err := os.CreateTemp(dir, ".pagecache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	// CreateTemp 默认 0600，前端 web server 需要能读取缓存页面。
	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, err
	}

	return &Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

// acquire 对同一文件名加锁，引用计数归零后移除锁对象，避免 locks 随 key 数量无限增长。
func (s *fileStore) acquire(locator Locator) func() {
	key := locator.FileName()
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPath 把 Locator 映射为缓存目录下的单个文件，拒绝任何可能逃出目录的名字。
func (s *fileStore) entryPath(locator Locator) (string, error) {
	if locator.Key == "" || locator.Ext == "" {
		return "", fmt.Errorf("%w: key and ext required", ErrInvalidLocator)
	}
	name := locator.FileName()
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocator, name)
	}

	filePath := filepath.Join(s.root, name)
	if filepath.Dir(filePath) != s.root {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocator, name)
	}
	return filePath, nil
}

// copyWithContext 在请求取消时中止写入，未完成的临时文件由 Put 清理。
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
