package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/requestid"
	"github.com/any-hub/bundle-hub/internal/version"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger   *logrus.Logger
	Registry *MountRegistry
	// StaticRoot, when set, serves files for requests no mount claimed.
	StaticRoot string
}

// NewApp builds a Fiber application with request IDs, panic recovery, every
// mount in registry order, the optional static fallback and a JSON 404.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("mount registry is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ServerHeader:  version.ServerHeader(),
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	for _, route := range opts.Registry.List() {
		app.Use(route.Mount.Route(), route.Mount.Handle)
	}

	if opts.StaticRoot != "" {
		app.Get("/*", static.New(opts.StaticRoot))
	}

	app.Use(func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return renderNotFound(c, opts.Logger)
	})

	return app, nil
}

func renderNotFound(c fiber.Ctx, logger *logrus.Logger) error {
	fields := logrus.Fields{
		"action": "route_lookup",
		"path":   string(c.Request().URI().Path()),
		"method": c.Method(),
	}
	if reqID := requestid.FromCtx(c); reqID != "" {
		fields["request_id"] = reqID
	}
	logger.WithFields(fields).Debug("route_unmatched")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "not_found",
	})
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
