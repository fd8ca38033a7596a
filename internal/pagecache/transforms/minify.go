package transforms

import (
	"regexp"
	"strings"
)

const (
	// MinifyName 与 Compress = true 等价。
	MinifyName        = "minify"
	StripCommentsName = "strip-comments"
)

var (
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

func init() {
	MustRegister(MinifyName, MinifyHTML)
	MustRegister(StripCommentsName, StripComments)
}

// MinifyHTML 删除 HTML 注释，并把连续空白（含换行）折叠为单个空格。
func MinifyHTML(body string) string {
	body = htmlCommentPattern.ReplaceAllString(body, "")
	body = whitespacePattern.ReplaceAllString(body, " ")
	return strings.TrimSpace(body)
}

// StripComments 仅删除 HTML 注释，保留原始排版。
func StripComments(body string) string {
	return htmlCommentPattern.ReplaceAllString(body, "")
}
