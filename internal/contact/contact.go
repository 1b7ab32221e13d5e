// Package contact 定义名片相关外部协作者的接口。
// 具体实现（OCR 识别、vCard/二维码生成）由部署方注入，核心只约定
// 数据契约：交给导出器的记录一定已经满足 profile-card 的内容模式，
// 识别器返回的记录必须能通过同一套净化校验。
package contact

import (
	"context"
	"io"
)

// Extractor 从名片图片中尽力提取结构化联系人字段。
// 返回的原始记录仍需经过 content.Validate(BlockProfileCard, ...)。
type Extractor interface {
	Extract(ctx context.Context, image io.Reader, mimeType string) (map[string]any, error)
}

// ExportResult 是一次导出的产物。
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CardExporter 把已校验的 profile-card 内容记录转成可下载的联系人文件。
type CardExporter interface {
	Export(ctx context.Context, card map[string]any) (*ExportResult, error)
}
