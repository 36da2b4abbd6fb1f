package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/file-hub/internal/cache"
	"github.com/any-hub/file-hub/internal/listing"
	"github.com/any-hub/file-hub/internal/logging"
	"github.com/any-hub/file-hub/internal/pathutil"
	"github.com/any-hub/file-hub/internal/throttle"
)

// Source 标记一次响应走的是哪条交付路径，只用于日志与测试观察。
type Source string

const (
	SourceCacheHit  Source = "cache_hit"
	SourceCacheMiss Source = "cache_miss"
	SourceStream    Source = "stream"
	SourceListing   Source = "listing"
)

// Request 是 HTTP 层交给引擎的输入。Path 仍为百分号编码的原始路径。
type Request struct {
	Path      string
	Download  bool
	RequestID string
	ClientIP  string
}

// Response 是引擎的输出：文件响应二选一地携带 Body（完整字节）或 Stream（惰性、只能消费一次），
// 目录响应只携带 Listing，交由外部渲染器处理。
type Response struct {
	Header  Header
	Body    []byte
	Stream  io.ReadCloser
	Listing *listing.Page
	Source  Source
	Path    pathutil.Resolved
}

// IsDirectory 表示响应应交给目录列表渲染器。
func (r *Response) IsDirectory() bool {
	return r.Listing != nil
}

// Options 汇总引擎依赖；Fs 为空时使用真实文件系统。
type Options struct {
	Resolver *pathutil.Resolver
	Cache    *cache.Cache
	Throttle *throttle.Factory
	Logger   *logrus.Logger
	Fs       afero.Fs
}

// Engine 负责 "Resolve → Stat → 缓存命中 / 小文件读入缓存 / 大文件限速流" 的完整流程。
type Engine struct {
	resolver *pathutil.Resolver
	cache    *cache.Cache
	throttle *throttle.Factory
	logger   *logrus.Logger
	fs       afero.Fs
	group    singleflight.Group
}

// NewEngine 校验依赖并构建引擎，进程内复用一份实例。
func NewEngine(opts Options) (*Engine, error) {
	if opts.Resolver == nil {
		return nil, errors.New("path resolver is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("delivery cache is required")
	}
	if opts.Throttle == nil {
		return nil, errors.New("throttle factory is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Engine{
		resolver: opts.Resolver,
		cache:    opts.Cache,
		throttle: opts.Throttle,
		logger:   opts.Logger,
		fs:       fs,
	}, nil
}

// Root 返回规范化后的根目录。
func (e *Engine) Root() string {
	return e.resolver.Root()
}

// Cache 暴露共享缓存，供诊断接口读取统计。
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Throttle 返回限速工厂，供诊断接口读取配置。
func (e *Engine) Throttle() *throttle.Factory {
	return e.throttle
}

// Serve 处理一次请求。返回的错误可通过 StatusCode 映射为 HTTP 状态码；
// Response.Stream 非空时由调用方负责 Close。
func (e *Engine) Serve(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	resolved, err := e.resolver.Resolve(req.Path)
	if err != nil {
		e.logFailure(req, "", started, err)
		return nil, err
	}

	info, err := e.fs.Stat(resolved.Abs)
	if err != nil {
		// 解析与 stat 之间文件被删除
		err = fmt.Errorf("%w: stat %s: %v", pathutil.ErrNotFound, resolved.Abs, err)
		e.logFailure(req, resolved.Abs, started, err)
		return nil, err
	}

	if info.IsDir() {
		page, err := listing.Build(e.fs, resolved.Abs, resolved.Rel, e.resolver.IsRoot(resolved))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrIO, err)
			e.logFailure(req, resolved.Abs, started, err)
			return nil, err
		}
		resp := &Response{Listing: page, Source: SourceListing, Path: resolved}
		e.logServed(req, resp, started)
		return resp, nil
	}
	if !info.Mode().IsRegular() {
		err = fmt.Errorf("%w: %s is not a regular file", pathutil.ErrNotFound, resolved.Abs)
		e.logFailure(req, resolved.Abs, started, err)
		return nil, err
	}

	var resp *Response
	if e.cache.Eligible(info.Size()) {
		resp, err = e.serveSmall(resolved, info.ModTime())
	} else {
		resp, err = e.serveStream(ctx, resolved, info.Size())
	}
	if err != nil {
		e.logFailure(req, resolved.Abs, started, err)
		return nil, err
	}
	e.logServed(req, resp, started)
	return resp, nil
}

// serveSmall 先按 mtime 查缓存，未命中时整文件读入并写回缓存。同一文件同一版本的并发未命中
// 通过 singleflight 合并为一次读取。
func (e *Engine) serveSmall(resolved pathutil.Resolved, modTime time.Time) (*Response, error) {
	name := filepath.Base(resolved.Abs)
	if data, ok := e.cache.Lookup(resolved.Abs, modTime); ok {
		return &Response{
			Header: buildHeader(name, int64(len(data)), data),
			Body:   data,
			Source: SourceCacheHit,
			Path:   resolved,
		}, nil
	}

	key := resolved.Abs + "@" + strconv.FormatInt(modTime.UnixNano(), 10)
	value, err, _ := e.group.Do(key, func() (interface{}, error) {
		data, err := afero.ReadFile(e.fs, resolved.Abs)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrIO, resolved.Abs, err)
		}
		// stat 之后文件可能被改大，超限内容不进缓存
		if e.cache.Eligible(int64(len(data))) {
			e.cache.Insert(resolved.Abs, data, modTime)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data := value.([]byte)
	return &Response{
		Header: buildHeader(name, int64(len(data)), data),
		Body:   data,
		Source: SourceCacheMiss,
		Path:   resolved,
	}, nil
}

// serveStream 打开文件并包上限速流；空文件同样走这里。
func (e *Engine) serveStream(ctx context.Context, resolved pathutil.Resolved, size int64) (*Response, error) {
	name := filepath.Base(resolved.Abs)
	f, err := e.fs.Open(resolved.Abs)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, resolved.Abs, err)
	}

	var head []byte
	if extensionType(name) == "" && size > 0 {
		head, err = readHead(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: sniff %s: %v", ErrIO, resolved.Abs, err)
		}
	}

	return &Response{
		Header: buildHeader(name, size, head),
		Stream: e.throttle.Wrap(ctx, f, size),
		Source: SourceStream,
		Path:   resolved,
	}, nil
}

// readHead 读取文件头用于类型嗅探，然后把读指针移回开头。
func readHead(f afero.File) ([]byte, error) {
	buf := make([]byte, sniffLimit)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (e *Engine) logServed(req Request, resp *Response, started time.Time) {
	fields := logging.RequestFields(req.RequestID, req.ClientIP, resp.Path.Abs, string(resp.Source))
	fields["action"] = "deliver"
	fields["download"] = req.Download
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if !resp.IsDirectory() {
		fields["size"] = resp.Header.ContentLength
		fields["content_type"] = resp.Header.ContentType
	}
	e.logger.WithFields(fields).Info("deliver_ready")
}

func (e *Engine) logFailure(req Request, abs string, started time.Time, err error) {
	fields := logging.RequestFields(req.RequestID, req.ClientIP, abs, "")
	fields["action"] = "deliver"
	fields["request_path"] = req.Path
	fields["status"] = StatusCode(err)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	entry := e.logger.WithFields(fields).WithError(err)
	if errors.Is(err, ErrIO) {
		entry.Error("deliver_failed")
		return
	}
	entry.Warn("deliver_rejected")
}
