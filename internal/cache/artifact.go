package cache

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ContentTypeJavaScript 是所有成功构建产物的 Content-Type。
const ContentTypeJavaScript = "application/javascript"

// Artifact 是一次成功构建（含变换）的最终产物，创建后只读，由所有等待者共享。
type Artifact struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
	ETag            string
	BuiltAt         time.Time
}

// NewArtifact 根据正文和编码构造产物，ETag 为正文的 xxhash 弱校验值。
func NewArtifact(body []byte, encoding string) *Artifact {
	return &Artifact{
		Body:            body,
		ContentType:     ContentTypeJavaScript,
		ContentEncoding: encoding,
		ETag:            fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body)),
		BuiltAt:         time.Now().UTC(),
	}
}

// Size 返回正文字节数。
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Body)
}
