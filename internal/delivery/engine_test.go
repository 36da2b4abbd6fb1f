package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/file-hub/internal/cache"
	"github.com/any-hub/file-hub/internal/pathutil"
	"github.com/any-hub/file-hub/internal/throttle"
)

func TestServeSmallFileReadsOnce(t *testing.T) {
	root := t.TempDir()
	payload := bytes.Repeat([]byte{0x25}, 2*1024*1024)
	writeFile(t, filepath.Join(root, "report.pdf"), payload)

	engine, fs := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)

	first, err := engine.Serve(context.Background(), Request{Path: "/report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, SourceCacheMiss, first.Source)
	assert.Equal(t, payload, first.Body)
	assert.Nil(t, first.Stream)
	assert.Equal(t, "application/pdf", first.Header.ContentType)
	assert.Equal(t, int64(len(payload)), first.Header.ContentLength)
	assert.Equal(t, `attachment; filename="report.pdf"`, first.Header.ContentDisposition)
	assert.Equal(t, int64(1), fs.opens.Load())

	second, err := engine.Serve(context.Background(), Request{Path: "/report.pdf", Download: true})
	require.NoError(t, err)
	assert.Equal(t, SourceCacheHit, second.Source)
	assert.Equal(t, payload, second.Body)
	assert.Equal(t, first.Header, second.Header)
	assert.Equal(t, int64(1), fs.opens.Load(), "cache hit must not reopen the file")
}

func TestServeRereadsModifiedFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "notes.txt")
	writeFile(t, target, []byte("version one"))

	engine, fs := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)
	resp, err := engine.Serve(context.Background(), Request{Path: "/notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "version one", string(resp.Body))

	writeFile(t, target, []byte("version two!"))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(target, later, later))

	resp, err = engine.Serve(context.Background(), Request{Path: "/notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, SourceCacheMiss, resp.Source)
	assert.Equal(t, "version two!", string(resp.Body))
	assert.Equal(t, int64(len("version two!")), resp.Header.ContentLength)
	assert.Equal(t, int64(2), fs.opens.Load())
}

func TestServeThresholdBoundary(t *testing.T) {
	root := t.TempDir()
	const threshold = 1024
	atLimit := bytes.Repeat([]byte("a"), threshold)
	overLimit := bytes.Repeat([]byte("b"), threshold+1)
	writeFile(t, filepath.Join(root, "at.txt"), atLimit)
	writeFile(t, filepath.Join(root, "over.txt"), overLimit)

	engine, _ := newTestEngine(t, root, threshold, nil)

	resp, err := engine.Serve(context.Background(), Request{Path: "/at.txt"})
	require.NoError(t, err)
	assert.Equal(t, SourceCacheMiss, resp.Source)
	assert.Equal(t, atLimit, resp.Body)

	resp, err = engine.Serve(context.Background(), Request{Path: "/over.txt"})
	require.NoError(t, err)
	assert.Equal(t, SourceStream, resp.Source)
	require.NotNil(t, resp.Stream)
	assert.Nil(t, resp.Body)
	data, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	require.NoError(t, resp.Stream.Close())
	assert.Equal(t, overLimit, data)
	assert.Equal(t, int64(threshold+1), resp.Header.ContentLength)

	assert.Equal(t, uint64(1), engine.Cache().Stats().Inserts, "only the file at the threshold is cached")
}

func TestServeEmptyFileStreams(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "empty"), nil)

	engine, _ := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)
	resp, err := engine.Serve(context.Background(), Request{Path: "/empty"})
	require.NoError(t, err)

	assert.Equal(t, SourceStream, resp.Source)
	assert.Equal(t, "application/octet-stream", resp.Header.ContentType)
	assert.Equal(t, int64(0), resp.Header.ContentLength)
	require.NotNil(t, resp.Stream)
	data, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Empty(t, data)
	require.NoError(t, resp.Stream.Close())
	assert.Zero(t, engine.Cache().Stats().Inserts)
}

func TestServeHeadersIdenticalAcrossPaths(t *testing.T) {
	root := t.TempDir()
	content := bytes.Repeat([]byte("plain text line\n"), 400)
	writeFile(t, filepath.Join(root, "README"), content)

	cached, _ := newTestEngine(t, root, int64(len(content)), nil)
	streamed, _ := newTestEngine(t, root, int64(len(content))-1, nil)

	a, err := cached.Serve(context.Background(), Request{Path: "/README"})
	require.NoError(t, err)
	b, err := streamed.Serve(context.Background(), Request{Path: "/README"})
	require.NoError(t, err)
	defer b.Stream.Close()

	assert.Equal(t, SourceCacheMiss, a.Source)
	assert.Equal(t, SourceStream, b.Source)
	assert.Equal(t, a.Header, b.Header)
	assert.Contains(t, a.Header.ContentType, "text/plain")

	// 嗅探之后流必须从文件开头读起
	data, err := io.ReadAll(b.Stream)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestServeRejectsBadPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	engine, fs := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)

	cases := []struct {
		path     string
		statuses []int
	}{
		{"/a/../../etc/passwd", []int{http.StatusForbidden, http.StatusNotFound}},
		{"/%2e%2e/%2e%2e/etc/passwd", []int{http.StatusForbidden, http.StatusNotFound}},
		{"/missing.txt", []int{http.StatusNotFound}},
		{"/bad%zz", []int{http.StatusBadRequest}},
		{"/bad%ff", []int{http.StatusBadRequest}},
	}
	for _, tc := range cases {
		resp, err := engine.Serve(context.Background(), Request{Path: tc.path})
		require.Error(t, err, tc.path)
		assert.Nil(t, resp)
		assert.Contains(t, tc.statuses, StatusCode(err), tc.path)
	}
	assert.Zero(t, fs.opens.Load(), "rejected paths must not touch file content")
}

func TestServeDirectoryReturnsListing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	writeFile(t, filepath.Join(root, "docs", "a.md"), []byte("# a"))

	engine, _ := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)

	resp, err := engine.Serve(context.Background(), Request{Path: "/"})
	require.NoError(t, err)
	require.True(t, resp.IsDirectory())
	assert.Equal(t, SourceListing, resp.Source)
	assert.Equal(t, "/", resp.Listing.Path)
	require.Len(t, resp.Listing.Entries, 1)
	assert.Equal(t, "docs", resp.Listing.Entries[0].Name)

	resp, err = engine.Serve(context.Background(), Request{Path: "/docs/"})
	require.NoError(t, err)
	require.True(t, resp.IsDirectory())
	assert.Equal(t, "..", resp.Listing.Entries[0].Name)
	assert.Equal(t, "/docs/a.md", resp.Listing.Entries[1].URL)
}

func TestServeOpenFailureIsIOError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.txt"), []byte("small"))
	writeFile(t, filepath.Join(root, "large.txt"), bytes.Repeat([]byte("x"), 64))

	broken := errors.New("device not ready")
	engine, _ := newTestEngine(t, root, 16, broken)

	for _, p := range []string{"/small.txt", "/large.txt"} {
		_, err := engine.Serve(context.Background(), Request{Path: p})
		require.Error(t, err, p)
		assert.ErrorIs(t, err, ErrIO)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		assert.Equal(t, "io_failure", ErrorCode(err))
	}
}

func TestServeConcurrentRequests(t *testing.T) {
	root := t.TempDir()
	payload := bytes.Repeat([]byte("concurrent"), 1000)
	writeFile(t, filepath.Join(root, "shared.txt"), payload)

	engine, fs := newTestEngine(t, root, cache.DefaultSizeThreshold, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := engine.Serve(context.Background(), Request{Path: "/shared.txt"})
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(payload, resp.Body) {
				errs <- errors.New("body mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	assert.LessOrEqual(t, fs.opens.Load(), int64(16))
	assert.GreaterOrEqual(t, fs.opens.Load(), int64(1))
}

func TestStatusCodeMapping(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, StatusCode(pathutil.ErrInvalidEncoding))
	assert.Equal(t, http.StatusForbidden, StatusCode(pathutil.ErrTraversal))
	assert.Equal(t, http.StatusNotFound, StatusCode(pathutil.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("other")))
	assert.Equal(t, "traversal_blocked", ErrorCode(pathutil.ErrTraversal))
	assert.Equal(t, "invalid_path_encoding", ErrorCode(pathutil.ErrInvalidEncoding))
	assert.Equal(t, "not_found", ErrorCode(pathutil.ErrNotFound))
}

// countingFs 统计 Open 次数，用于观察是否真的读了磁盘；openErr 非空时模拟读取失败。
type countingFs struct {
	afero.Fs
	opens   atomic.Int64
	openErr error
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.Fs.Open(name)
}

func newTestEngine(t *testing.T, root string, threshold int64, openErr error) (*Engine, *countingFs) {
	t.Helper()

	resolver, err := pathutil.NewResolver(root)
	require.NoError(t, err)
	store, err := cache.New(cache.Options{Capacity: 16, TTL: time.Hour, SizeThreshold: threshold})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	factory, err := throttle.NewFactory(throttle.DefaultRate, 0, nil)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fs := &countingFs{Fs: afero.NewOsFs(), openErr: openErr}
	engine, err := NewEngine(Options{
		Resolver: resolver,
		Cache:    store,
		Throttle: factory,
		Logger:   logger,
		Fs:       fs,
	})
	require.NoError(t, err)
	return engine, fs
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
