package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// ValidateIndexTemplate 验证索引URL模板: 必须包含日期占位符, 代入后是合法URL
func ValidateIndexTemplate(tmpl string) error {
	if !strings.Contains(tmpl, IndexDatePlaceholder) {
		return fmt.Errorf("索引URL模板缺少占位符 %s: %s", IndexDatePlaceholder, tmpl)
	}
	return ValidateURL(strings.ReplaceAll(tmpl, IndexDatePlaceholder, "2000-01-01"))
}

// GenerateID 生成唯一ID
func GenerateID() string {
	return uuid.New().String()
}
