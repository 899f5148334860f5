package mount

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/cache"
	"github.com/any-hub/bundle-hub/internal/logging"
	"github.com/any-hub/bundle-hub/internal/requestid"
	"github.com/any-hub/bundle-hub/internal/resolve"
	"github.com/any-hub/bundle-hub/internal/target"
	"github.com/any-hub/bundle-hub/internal/transform"
)

// Handle 是挂载点的 fiber handler。它只在 ExactBuild 且构建成功或失败时写响应，
// 其余情况（不归本挂载、非脚本、目录下文件不存在）调用 c.Next() 交给后续 handler。
func (m *Mount) Handle(c fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.respondPanic(c, r)
		}
	}()

	method := c.Method()
	if method != fiber.MethodGet && method != fiber.MethodHead {
		return c.Next()
	}

	reqPath := requestPath(c)
	res := m.resolver.Resolve(reqPath)
	if res.Decision != resolve.ExactBuild {
		return c.Next()
	}

	// fasthttp 不感知客户端断开，c.Context() 默认永不取消。503 只来自构建超过 BuildTimeout，
	// 或前置中间件经 SetContext 设置的 ctx 结束。
	ctx := c.Context()

	started := time.Now()
	artifact, outcome, err := m.acquire(ctx, res.SubPath)
	fields := logging.RequestFields(m.name, m.route, string(m.target.Kind()), reqPath, string(outcome), requestid.FromCtx(c))
	fields["action"] = "serve"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		if builder.IsNotFound(err) && m.target.Kind() == target.KindDirectory {
			m.logger.WithFields(fields).Debug("bundle_fallthrough")
			return c.Next()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			m.logger.WithFields(fields).Warn("bundle_wait_aborted")
			return fiber.NewError(fiber.StatusServiceUnavailable, "bundle build aborted")
		}
		fields["error_kind"] = string(builder.KindOf(err))
		m.logger.WithError(err).WithFields(fields).Error("bundle_failed")
		return m.writeError(c, err)
	}

	fields["status"] = fiber.StatusOK
	m.logger.WithFields(fields).Info("bundle_served")
	return m.writeArtifact(c, artifact)
}

// writeArtifact 输出产物。存储为 gzip 而客户端不接受 gzip 时，按需解压后输出原文。
func (m *Mount) writeArtifact(c fiber.Ctx, artifact *cache.Artifact) error {
	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderETag, artifact.ETag)
	c.Set(fiber.HeaderCacheControl, m.cacheControl())
	if artifact.ContentEncoding != "" {
		c.Set(fiber.HeaderVary, fiber.HeaderAcceptEncoding)
	}

	// Fresh 在只带 If-Modified-Since 时也会返回 true，产物没有 Last-Modified，只认 ETag。
	if c.Get(fiber.HeaderIfNoneMatch) != "" && c.Fresh() {
		c.Status(fiber.StatusNotModified)
		return nil
	}

	body := artifact.Body
	if artifact.ContentEncoding == transform.EncodingGzip {
		if acceptsGzip(c) {
			c.Set(fiber.HeaderContentEncoding, artifact.ContentEncoding)
		} else {
			decoded, err := transform.Gunzip(artifact.Body)
			if err != nil {
				return m.writeError(c, builder.NewError(builder.KindTransform, "decode cached bundle failed", err))
			}
			body = decoded
		}
	}

	c.Status(fiber.StatusOK)
	return c.Send(body)
}

func (m *Mount) writeError(c fiber.Ctx, err error) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
}

func (m *Mount) respondPanic(c fiber.Ctx, recovered interface{}) error {
	fields := m.fields()
	fields["action"] = "serve"
	fields["error"] = "mount_handler_panic"
	if reqID := requestid.FromCtx(c); reqID != "" {
		fields["request_id"] = reqID
	}
	m.logger.WithFields(fields).Error(fmt.Sprintf("panic: %v", recovered))
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "mount_handler_panic"})
}

func (m *Mount) cacheControl() string {
	if !m.cfg.CacheEnabled || m.maxAge <= 0 {
		return "no-cache"
	}
	return "public, max-age=" + strconv.FormatInt(int64(m.maxAge/time.Second), 10)
}

func requestPath(c fiber.Ctx) string {
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	pathVal := string(uri.Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}

// acceptsGzip 要求客户端显式声明 gzip（或 *）。AcceptsEncodings 在请求头缺失时
// 会返回第一个候选，这里把缺失视为只接受原文。
func acceptsGzip(c fiber.Ctx) bool {
	if c.Get(fiber.HeaderAcceptEncoding) == "" {
		return false
	}
	return c.AcceptsEncodings(transform.EncodingGzip) != ""
}
