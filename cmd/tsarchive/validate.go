package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
)

// ValidateFlags 验证命令行标志, 空值和零值表示沿用配置文件
// 日期按 layout (crawl.date_layout) 解析, 与配置文件中的日期一致
func ValidateFlags(layout, start, end string, concurrency int, delay time.Duration) error {
	if layout == "" {
		layout = time.DateOnly
	}

	var from, to time.Time
	var err error

	if start != "" {
		if from, err = models.ParseDate(layout, start); err != nil {
			return fmt.Errorf("无效的开始日期 %q (格式 %s): %w", start, layout, err)
		}
	}
	if end != "" {
		if to, err = models.ParseDate(layout, end); err != nil {
			return fmt.Errorf("无效的结束日期 %q (格式 %s): %w", end, layout, err)
		}
	}
	if start != "" && end != "" && from.After(to) {
		return &models.InvalidRangeError{Start: from, End: to}
	}

	// 验证并发数
	if concurrency < 0 || concurrency > 256 {
		return fmt.Errorf("并发数必须在1-256之间,当前值: %d", concurrency)
	}

	// 验证延迟
	if delay < 0 {
		return fmt.Errorf("请求延迟不能为负数,当前值: %s", delay)
	}

	return nil
}

// parseHeaders 解析 -H 参数, 同名头部后者覆盖前者
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, err := utils.ParseHeaderFlag(h)
		if err != nil {
			return nil, err
		}
		out[http.CanonicalHeaderKey(name)] = value
	}
	return out, nil
}
