package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/tsarchive/internal/models"
)

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 由抓取器自己管理的头部, 不允许用户覆盖
// Accept-Encoding 决定响应如何解压, 必须与解码器保持一致
var ForbiddenHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Accept-Encoding",
}

var (
	// RFC 7230 token 的子集
	headerNamePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

	// 可打印ASCII + 空格/制表符
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderValidator 校验配置文件和命令行中的自定义请求头
type HeaderValidator struct {
	forbidden map[string]bool
	maxLen    int
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[http.CanonicalHeaderKey(h)] = true
	}
	return &HeaderValidator{forbidden: forbidden, maxLen: MaxHeaderValueLength}
}

// IsForbidden 头部是否由抓取器管理(不区分大小写)
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbidden[http.CanonicalHeaderKey(name)]
}

// ValidateHeader 校验单个头部, 失败时返回 *models.ValidationError
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	invalid := func(field, reason, suggestion string) error {
		return &models.ValidationError{Field: field, HeaderName: name, Reason: reason, Suggestion: suggestion}
	}

	switch {
	case hv.IsForbidden(name):
		return invalid("name", "此头部由抓取器自动管理,不允许自定义", fmt.Sprintf("移除 '%s' 头部配置", name))
	case name == "":
		return invalid("name", "头部名称不能为空", "")
	case !headerNamePattern.MatchString(name):
		return invalid("name", "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			"使用字母、数字和连字符 (如 'Accept-Language')")
	case len(value) > hv.maxLen:
		return invalid("value", fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxLen),
			fmt.Sprintf("将值缩短至 %d 字节以内", hv.maxLen))
	case !headerValuePattern.MatchString(value):
		return invalid("value", "头部值包含非法字符 (仅允许可打印ASCII字符)", "移除控制字符和非ASCII字符")
	}
	return nil
}

// Validate 校验 http.Header 中的全部值, 返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateMap 校验配置文件中的 crawl.headers
func (hv *HeaderValidator) ValidateMap(headers map[string]string) error {
	for name, value := range headers {
		if err := hv.ValidateHeader(name, value); err != nil {
			return err
		}
	}
	return nil
}

// ParseHeaderFlag 解析命令行 -H "Name: Value" 参数
func ParseHeaderFlag(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	if !ok {
		return "", "", fmt.Errorf("头部格式错误 %q, 应为 'Name: Value'", raw)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	if err := NewHeaderValidator().ValidateHeader(name, value); err != nil {
		return "", "", err
	}
	return name, value, nil
}
