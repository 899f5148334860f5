package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/bundle-hub/internal/requestid"
)

func newTestApp(t *testing.T, staticRoot string) (*fiber.App, *countingBuilder) {
	t.Helper()
	b := &countingBuilder{}
	registry, err := NewMountRegistry(testConfig(t), RegistryDeps{Builder: b, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	app, err := NewApp(AppOptions{Logger: quietLogger(), Registry: registry, StaticRoot: staticRoot})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	return app, b
}

func doGet(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestRouterServesMounts(t *testing.T) {
	app, b := newTestApp(t, "")

	resp, body := doGet(t, app, "/app.js")
	if resp.StatusCode != fiber.StatusOK || string(body) != "/* file */" {
		t.Fatalf("expected file bundle, got %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get(requestid.HeaderName) == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	resp, body = doGet(t, app, "/src/page.js")
	if resp.StatusCode != fiber.StatusOK || string(body) != "/* directory/page.js */" {
		t.Fatalf("expected directory bundle, got %d %q", resp.StatusCode, body)
	}
	if b.calls.Load() != 2 {
		t.Fatalf("expected 2 builds, got %d", b.calls.Load())
	}
}

func TestRouterReturnsJSON404WhenUnclaimed(t *testing.T) {
	app, _ := newTestApp(t, "")

	for _, p := range []string{"/nowhere", "/src/missing.js", "/src/readme.txt"} {
		resp, body := doGet(t, app, p)
		if resp.StatusCode != fiber.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", p, resp.StatusCode)
		}
		if !bytes.Contains(body, []byte(`"not_found"`)) {
			t.Fatalf("%s: expected not_found error, got %s", p, body)
		}
	}
}

func TestRouterStaticFallback(t *testing.T) {
	static := t.TempDir()
	writeFixture(t, static, "index.html", "<html>hi</html>")
	writeFixture(t, static, "src/readme.txt", "static readme")

	app, b := newTestApp(t, static)

	resp, body := doGet(t, app, "/src/readme.txt")
	if resp.StatusCode != fiber.StatusOK || string(body) != "static readme" {
		t.Fatalf("pass-through path should be served statically, got %d %q", resp.StatusCode, body)
	}
	resp, body = doGet(t, app, "/index.html")
	if resp.StatusCode != fiber.StatusOK || string(body) != "<html>hi</html>" {
		t.Fatalf("unclaimed path should be served statically, got %d %q", resp.StatusCode, body)
	}
	if b.calls.Load() != 0 {
		t.Fatalf("static assets must not trigger builds")
	}
	resp, _ = doGet(t, app, "/"+filepath.Base(static)+"/nothing.css")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("missing static asset should 404, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: quietLogger()}); err == nil {
		t.Fatalf("missing registry should fail")
	}
}
