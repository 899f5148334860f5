// Package transform 对构建产物做可选的压缩（minify）与 gzip，顺序固定为先 minify 后 gzip。
package transform

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/klauspost/compress/gzip"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/cache"
	"github.com/any-hub/bundle-hub/internal/target"
)

// EncodingGzip 是压缩产物的 Content-Encoding。
const EncodingGzip = "gzip"

// Pipeline 由挂载配置决定，之后只读。
type Pipeline struct {
	Minify   bool
	Compress bool
	// Level 为 gzip 压缩级别，0 表示默认级别。
	Level int
}

// FromConfig 根据挂载的 BuildConfig 构造 Pipeline。
func FromConfig(cfg target.BuildConfig, level int) Pipeline {
	return Pipeline{
		Minify:   cfg.MinifyEnabled,
		Compress: cfg.CompressEnabled,
		Level:    level,
	}
}

// Encoding 返回该 Pipeline 产物的 Content-Encoding，未压缩时为空。
func (p Pipeline) Encoding() string {
	if p.Compress {
		return EncodingGzip
	}
	return ""
}

// Apply 把构建输出变换为最终产物。任何阶段失败都返回 KindTransform 的 BuildError。
func (p Pipeline) Apply(src []byte) (*cache.Artifact, error) {
	body := src
	if p.Minify {
		minified, err := Minify(body)
		if err != nil {
			return nil, err
		}
		body = minified
	}
	if p.Compress {
		compressed, err := Gzip(body, p.Level)
		if err != nil {
			return nil, err
		}
		body = compressed
	}
	return cache.NewArtifact(body, p.Encoding()), nil
}

// Minify 使用 esbuild 的 transform API 压缩 JavaScript。
func Minify(src []byte) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		texts := make([]string, 0, len(result.Errors))
		for _, msg := range result.Errors {
			texts = append(texts, msg.Text)
		}
		return nil, builder.NewError(builder.KindTransform, "minify failed: "+strings.Join(texts, "; "), nil)
	}
	return result.Code, nil
}

// Gzip 压缩 src；level 为 0 时使用 gzip.DefaultCompression。
func Gzip(src []byte, level int) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, builder.NewError(builder.KindTransform, fmt.Sprintf("gzip failed: %v", err), err)
	}
	if _, err := zw.Write(src); err != nil {
		return nil, builder.NewError(builder.KindTransform, fmt.Sprintf("gzip failed: %v", err), err)
	}
	if err := zw.Close(); err != nil {
		return nil, builder.NewError(builder.KindTransform, fmt.Sprintf("gzip failed: %v", err), err)
	}
	return buf.Bytes(), nil
}

// Gunzip 解压 gzip 正文，供不接受 gzip 的客户端使用。
func Gunzip(src []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
