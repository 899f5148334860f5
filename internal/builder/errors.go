package builder

import (
	"errors"
	"fmt"
)

// Kind 区分构建失败的原因，决定响应层是透传、500 还是记录为未知错误。
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindSyntax     Kind = "syntax"
	KindResolution Kind = "resolution"
	KindTransform  Kind = "transform"
	KindUnknown    Kind = "unknown"
)

// BuildError 是构建/变换阶段的统一错误类型。
type BuildError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *BuildError) Unwrap() error { return e.Err }

// ErrNotFound 表示请求的源文件不存在。目录挂载会把它视为“不归我处理”。
var ErrNotFound = errors.New("source not found")

// NewError 构造指定类型的 BuildError。
func NewError(kind Kind, message string, err error) *BuildError {
	return &BuildError{Kind: kind, Message: message, Err: err}
}

// NotFound 返回包装了 ErrNotFound 的 BuildError。
func NotFound(path string) *BuildError {
	return &BuildError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("source not found: %s", path),
		Err:     ErrNotFound,
	}
}

// KindOf 返回 err 对应的失败类型；非 BuildError 视为 unknown。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindUnknown
}

// IsNotFound 报告 err 是否表示源文件不存在。
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
