package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	RunID       string `json:"run_id"`
	IndexURL    string `json:"index_url_template"`
	ArchiveRoot string `json:"archive_root"`

	// 时间窗口
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 运行结果: completed, interrupted, aborted
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`

	// 统计信息
	Stats CrawlStats `json:"stats"`

	// 失败页面(可能被截断)
	FailedPages []FailedPage `json:"failed_pages"`
	Truncated   bool         `json:"truncated"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
