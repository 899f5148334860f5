package routes

import (
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/any-hub/bundle-hub/internal/server"
)

// RegisterDiagnostics 暴露 /-/mounts 与 /-/metrics 诊断接口，供 SRE 查询挂载状态与构建指标。
func RegisterDiagnostics(app *fiber.App, registry *server.MountRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/mounts", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"mounts": encodeMounts(registry.List()),
		})
	})

	app.Get("/-/mounts/*", func(c fiber.Ctx) error {
		route := "/" + strings.Trim(c.Params("*"), "/")
		entry, ok := registry.Lookup(route)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mount_not_found"})
		}
		return c.JSON(encodeMount(entry))
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

type mountPayload struct {
	Name          string         `json:"name"`
	Route         string         `json:"route"`
	Kind          string         `json:"kind"`
	Source        string         `json:"source"`
	Modules       []string       `json:"modules,omitempty"`
	External      []string       `json:"external,omitempty"`
	Options       optionsPayload `json:"options"`
	CachedEntries int            `json:"cached_entries"`
	Builds        int64          `json:"builds"`
}

type optionsPayload struct {
	Cache         bool     `json:"cache"`
	Gzip          bool     `json:"gzip"`
	Minify        bool     `json:"minify"`
	Debug         bool     `json:"debug"`
	Watch         bool     `json:"watch"`
	Precompile    bool     `json:"precompile"`
	MaxAgeSeconds int64    `json:"max_age_seconds"`
	Extensions    []string `json:"extensions,omitempty"`
	Ignore        []string `json:"ignore,omitempty"`
}

func encodeMounts(entries []*server.MountRoute) []mountPayload {
	if len(entries) == 0 {
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Config.Route < entries[j].Config.Route
	})
	result := make([]mountPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, encodeMount(entry))
	}
	return result
}

func encodeMount(entry *server.MountRoute) mountPayload {
	m := entry.Mount
	cfg := m.Config()
	tgt := m.Target()
	return mountPayload{
		Name:     m.Name(),
		Route:    m.Route(),
		Kind:     string(tgt.Kind()),
		Source:   tgt.Root(),
		Modules:  tgt.Modules(),
		External: tgt.External(),
		Options: optionsPayload{
			Cache:         cfg.CacheEnabled,
			Gzip:          cfg.CompressEnabled,
			Minify:        cfg.MinifyEnabled,
			Debug:         cfg.DebugEnabled,
			Watch:         entry.Config.Watch,
			Precompile:    entry.Config.Precompile,
			MaxAgeSeconds: int64(m.MaxAge() / time.Second),
			Extensions:    append([]string(nil), entry.Config.Extensions...),
			Ignore:        append([]string(nil), entry.Config.Ignore...),
		},
		CachedEntries: m.CachedEntries(),
		Builds:        m.Builds(),
	}
}
