package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/config"
	"github.com/any-hub/bundle-hub/internal/server"
	"github.com/any-hub/bundle-hub/internal/target"
)

func newDiagnosticsApp(t *testing.T) *fiber.App {
	t.Helper()
	dir := t.TempDir()
	entry := filepath.Join(dir, "app.js")
	if err := os.WriteFile(entry, []byte("console.log(1);\n"), 0o644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}
	on := true
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000, MaxMemoryEntries: 8, GzipLevel: 6, BuildTimeout: config.Duration(time.Minute)},
		Mounts: []config.MountConfig{
			{Name: "vendor", Route: "/vendor.js", Kind: "modules", Source: dir, Modules: []string{"left-pad"}, Cache: &on},
			{Name: "app", Route: "/app.js", Kind: "file", Source: entry, Cache: &on, MaxAge: config.Duration(time.Hour)},
		},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fake := builder.Func(func(context.Context, *target.SourceTarget, string, target.BuildConfig) ([]byte, error) {
		return []byte("console.log(1);"), nil
	})
	registry, err := server.NewMountRegistry(cfg, server.RegistryDeps{Builder: fake, Logger: logger})
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	app, err := server.NewApp(server.AppOptions{Logger: logger, Registry: registry})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	RegisterDiagnostics(app, registry)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestMountsEndpointListsMounts(t *testing.T) {
	app := newDiagnosticsApp(t)
	get(t, app, "/app.js")

	resp, body := get(t, app, "/-/mounts")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var payload struct {
		Mounts []mountPayload `json:"mounts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(payload.Mounts) != 2 {
		t.Fatalf("expected 2 mounts, got %d", len(payload.Mounts))
	}
	app0 := payload.Mounts[0]
	if app0.Route != "/app.js" || app0.Kind != "file" || app0.Builds != 1 || app0.CachedEntries != 1 {
		t.Fatalf("unexpected app mount payload: %+v", app0)
	}
	if app0.Options.MaxAgeSeconds != 3600 || !app0.Options.Cache {
		t.Fatalf("unexpected options: %+v", app0.Options)
	}
	if vendor := payload.Mounts[1]; vendor.Kind != "modules" || len(vendor.Modules) != 1 {
		t.Fatalf("unexpected vendor payload: %+v", vendor)
	}
}

func TestMountDetailEndpoint(t *testing.T) {
	app := newDiagnosticsApp(t)

	resp, body := get(t, app, "/-/mounts/vendor.js")
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), `"left-pad"`) {
		t.Fatalf("unexpected detail response: %d %s", resp.StatusCode, body)
	}
	resp, body = get(t, app, "/-/mounts/nope")
	if resp.StatusCode != fiber.StatusNotFound || !strings.Contains(string(body), "mount_not_found") {
		t.Fatalf("unknown mount should 404, got %d %s", resp.StatusCode, body)
	}
}

func TestMetricsEndpointExposesBuildCounters(t *testing.T) {
	app := newDiagnosticsApp(t)
	get(t, app, "/app.js")

	resp, body := get(t, app, "/-/metrics")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, name := range []string{"bundle_hub_build_total", "bundle_hub_cache_lookup_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output should contain %s", name)
		}
	}
}
