package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/cache"
	"github.com/any-hub/pagecache/internal/config"
	"github.com/any-hub/pagecache/internal/pagecache"
)

func TestPageCacheMiddlewareWritesRootPage(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: "<p>home</p>", contentType: "text/html; charset=utf-8"})

	doRequest(t, app, "GET", "http://site.local/")

	data := readCacheFile(t, dir, "_root.html")
	if !strings.HasPrefix(data, "<!--cachetime:") || !strings.HasSuffix(data, ";ext:html--><p>home</p>") {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestPageCacheMiddlewareUsesPathExtensionAndQuery(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: `{"a":1}`, contentType: "application/json"})

	doRequest(t, app, "GET", "http://site.local/foo/bar/baz.json?x=y")

	data := readCacheFile(t, dir, "foo-bar-baz-json-x-y.json")
	if !strings.Contains(data, ";ext:json-->") || !strings.HasSuffix(data, `{"a":1}`) {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestPageCacheMiddlewarePreservesQueryOrder(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: "x", contentType: "text/html"})

	doRequest(t, app, "GET", "http://site.local/list?b=2&a=1")

	readCacheFile(t, dir, "list-b-2-a-1.html")
}

func TestPageCacheMiddlewareStripsBasePath(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: "view", contentType: "text/html"})

	doRequest(t, app, "GET", "http://site.local/myapp/pages/view/1")

	readCacheFile(t, dir, "pages-view-1.html")
}

func TestPageCacheMiddlewareSkipsPost(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: "posted", contentType: "text/html"})

	doRequest(t, app, "POST", "http://site.local/myapp/pages")

	assertCacheEmpty(t, dir)
}

func TestPageCacheMiddlewareLogsSkippedRequests(t *testing.T) {
	dir := t.TempDir()
	logBuf := &bytes.Buffer{}
	app := newTestApp(t, testAppOptions{cacheDir: dir, actions: []string{"view"}, body: "page", contentType: "text/html", logOutput: logBuf})

	doRequest(t, app, "POST", "http://site.local/myapp/pages")
	doRequest(t, app, "GET", "http://site.local/myapp/pages")
	assertCacheEmpty(t, dir)

	out := logBuf.String()
	if strings.Count(out, "page_cache_skipped") != 2 {
		t.Fatalf("expected two skip logs, got %s", out)
	}
	if !strings.Contains(out, `"method":"POST"`) || !strings.Contains(out, `"route_action":"index"`) {
		t.Fatalf("expected skip logs to carry method and route action, got %s", out)
	}
}

func TestPageCacheMiddlewareHonorsActionAllowList(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, actions: []string{"view"}, body: "page", contentType: "text/html"})

	doRequest(t, app, "GET", "http://site.local/myapp/pages")
	assertCacheEmpty(t, dir)

	doRequest(t, app, "GET", "http://site.local/myapp/pages/view/2")
	readCacheFile(t, dir, "pages-view-2.html")
}

func TestPageCacheMiddlewareSkipsNonOKResponses(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, body: "missing", contentType: "text/html", status: 404})

	doRequest(t, app, "GET", "http://site.local/gone")

	assertCacheEmpty(t, dir)
}

func TestPageCacheMiddlewareSkipsInDebugWithoutForce(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{cacheDir: dir, debug: true, body: "dbg", contentType: "text/html"})
	doRequest(t, app, "GET", "http://site.local/dbg")
	assertCacheEmpty(t, dir)

	forced := newTestApp(t, testAppOptions{cacheDir: dir, debug: true, force: true, body: "dbg", contentType: "text/html"})
	doRequest(t, forced, "GET", "http://site.local/dbg")
	readCacheFile(t, dir, "dbg.html")
}

func TestPageCacheMiddlewareMinifiesBody(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, testAppOptions{
		cacheDir:    dir,
		compress:    config.CompressSetting("true"),
		body:        "Foo bar <!-- Some comment --> and\n\n\t\t\tmore text.",
		contentType: "text/html",
	})

	resp := doRequest(t, app, "GET", "http://site.local/article")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<!-- Some comment -->") {
		t.Fatalf("response body must not be transformed, got %s", string(body))
	}

	data := readCacheFile(t, dir, "article.html")
	if !strings.HasSuffix(data, "-->Foo bar and more text.") {
		t.Fatalf("unexpected minified payload: %s", data)
	}
}

func newTestWriter(t *testing.T, opts testAppOptions, logger *logrus.Logger) *pagecache.Writer {
	t.Helper()
	store, err := cache.NewStore(opts.cacheDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	cfg, err := pagecache.NewConfig(config.PageCacheConfig{
		Enabled:  true,
		Actions:  opts.actions,
		Compress: opts.compress,
		Force:    opts.force,
	}, opts.debug)
	if err != nil {
		t.Fatalf("failed to build page cache config: %v", err)
	}
	return pagecache.NewWriter(store, cfg, logger)
}

func doRequest(t *testing.T, app *testApp, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func readCacheFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		entries, _ := os.ReadDir(dir)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected cache file %s: %v (have %v)", name, err, names)
	}
	return string(data)
}

func assertCacheEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no cache files, got %d (first=%s)", len(entries), entries[0].Name())
	}
}
