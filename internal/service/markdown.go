package service

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	goalMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	goalSanitizer = bluemonday.UGCPolicy()
)

// RenderGoalHTML 将阶段目标/计划说明中的 Markdown 渲染为净化后的 HTML。
// 渲染失败时退回净化后的原文，调用方无需处理错误。
func RenderGoalHTML(source string) string {
	if source == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := goalMarkdown.Convert([]byte(source), &buf); err != nil {
		return goalSanitizer.Sanitize(source)
	}
	return goalSanitizer.Sanitize(buf.String())
}
