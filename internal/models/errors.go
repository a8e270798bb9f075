package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrSystemicPersistence 持久化失败已呈系统性(磁盘已满、连续写入失败等), 需要人工介入
var ErrSystemicPersistence = errors.New("持久化系统性失败")

// InvalidRangeError 日期范围非法(start > end)
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

// Error 实现error接口
func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("无效的日期范围: 开始日期 %s 晚于结束日期 %s",
		e.Start.Format(time.DateOnly), e.End.Format(time.DateOnly))
}

// FetchError 传输层失败(超时、非成功状态码、DNS失败等)
type FetchError struct {
	// URL 请求的URL
	URL string

	// StatusCode HTTP状态码, 未收到响应时为0
	StatusCode int

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抓取失败 [%s] (HTTP %d): %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("抓取失败 [%s]: %v", e.URL, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// PersistenceError 文件系统失败(权限不足、磁盘已满等)
type PersistenceError struct {
	// Op 失败的操作: mkdir, create, compress, sync, rename
	Op string

	// Path 目标路径
	Path string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("持久化失败 [%s %s]: %v", e.Op, e.Path, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ValidationError 头部验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	// HeaderName 头部名称
	HeaderName string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
