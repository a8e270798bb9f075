package models

import (
	"fmt"
	"time"
)

// Role 页面角色
type Role string

const (
	RoleIndex   Role = "index"   // 按日索引页
	RoleArticle Role = "article" // 文章页
)

// TaskKind 任务类型
type TaskKind string

const (
	KindFetchIndex   TaskKind = "FetchIndex"
	KindFetchArticle TaskKind = "FetchArticle"
)

// TaskState 单个URL的处理状态
// queued → fetching → {fetched → processed | fetch_failed}
type TaskState string

const (
	StateQueued      TaskState = "queued"
	StateFetching    TaskState = "fetching"
	StateFetched     TaskState = "fetched"
	StateProcessed   TaskState = "processed"
	StateFetchFailed TaskState = "fetch_failed"
)

// Task 前沿队列中的一个任务
// 携带足够的上下文来计算输出路径, 不依赖外部可变状态
type Task struct {
	Kind TaskKind `json:"kind"`

	// URL 待抓取的绝对URL
	URL string `json:"url"`

	// Date 来源日期(索引页对应的日期)
	Date time.Time `json:"date"`

	// SourceURL 发现此URL的索引页(索引任务为空)
	SourceURL string `json:"source_url,omitempty"`

	State TaskState `json:"state"`
}

// NewIndexTask 创建索引页任务
func NewIndexTask(url string, date time.Time) *Task {
	return &Task{Kind: KindFetchIndex, URL: url, Date: date, State: StateQueued}
}

// NewArticleTask 创建文章页任务
func NewArticleTask(url string, date time.Time, sourceURL string) *Task {
	return &Task{Kind: KindFetchArticle, URL: url, Date: date, SourceURL: sourceURL, State: StateQueued}
}

// Role 返回任务对应的页面角色
func (t *Task) Role() Role {
	if t.Kind == KindFetchIndex {
		return RoleIndex
	}
	return RoleArticle
}

// FetchResult 抓取能力返回的响应
type FetchResult struct {
	// URL 重定向后的最终URL
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// FetchedDocument 已抓取的文档, 交给对应角色的提取器或写入器后即丢弃
type FetchedDocument struct {
	URL  string
	Role Role
	Date time.Time
	Body []byte
}

// CrawlStats 爬取统计
type CrawlStats struct {
	Days               int     `json:"days"`                // 日期总数
	SkippedDays        int     `json:"skipped_days"`        // 断点续爬跳过的日期数
	IndexFetched       int     `json:"index_fetched"`       // 成功抓取的索引页
	IndexFailed        int     `json:"index_failed"`        // 失败的索引页
	ArticlesDiscovered int     `json:"articles_discovered"` // 发现的文章链接
	ArticlesFetched    int     `json:"articles_fetched"`    // 成功抓取的文章页
	ArticlesFailed     int     `json:"articles_failed"`     // 抓取失败的文章页
	Offsite            int     `json:"offsite"`             // 域外或无效链接
	Skipped            int     `json:"skipped"`             // 非内容页(无页面名)
	Persisted          int     `json:"persisted"`           // 写入归档的页面
	Undated            int     `json:"undated"`             // 写入 unknown 分区的页面
	PersistFailed      int     `json:"persist_failed"`      // 写入失败
	BytesWritten       int64   `json:"bytes_written"`       // 压缩后写入字节数
	Duration           float64 `json:"duration"`            // 总耗时(秒)
}

// Fetched 成功抓取的页面总数
func (s CrawlStats) Fetched() int {
	return s.IndexFetched + s.ArticlesFetched
}

// Failed 失败的页面总数
func (s CrawlStats) Failed() int {
	return s.IndexFailed + s.ArticlesFailed + s.PersistFailed
}

// FailedPage 失败页面记录
type FailedPage struct {
	URL       string    `json:"url"`
	Role      Role      `json:"role"`
	ErrorType string    `json:"error_type"` // fetch, parse, persist
	ErrorMsg  string    `json:"error_msg"`
	Date      time.Time `json:"date"`
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	StartDate        string            `mapstructure:"start_date" json:"start_date"`
	EndDate          string            `mapstructure:"end_date" json:"end_date"`
	DateLayout       string            `mapstructure:"date_layout" json:"date_layout"`
	IndexURLTemplate string            `mapstructure:"index_url_template" json:"index_url_template"`
	AllowedDomains   []string          `mapstructure:"allowed_domains" json:"allowed_domains"`
	Concurrency      int               `mapstructure:"concurrency" json:"concurrency"`
	Delay            time.Duration     `mapstructure:"delay" json:"delay"`
	RandomDelay      time.Duration     `mapstructure:"random_delay" json:"random_delay"`
	RequestTimeout   time.Duration     `mapstructure:"request_timeout" json:"request_timeout"`
	UserAgent        string            `mapstructure:"user_agent" json:"user_agent"`
	Headers          map[string]string `mapstructure:"headers" json:"-"`
	RespectRobotsTxt bool              `mapstructure:"respect_robots_txt" json:"respect_robots_txt"`
	MaxBodySizeMB    int               `mapstructure:"max_body_size_mb" json:"max_body_size_mb"`
	Resume           bool              `mapstructure:"resume" json:"resume"`
	CheckpointDir    string            `mapstructure:"checkpoint_dir" json:"checkpoint_dir"`
}

// IndexDatePlaceholder 索引URL模板中的日期占位符
const IndexDatePlaceholder = "{date}"

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 256 {
		return fmt.Errorf("并发数必须在1-256之间")
	}
	if c.Delay < 0 || c.RandomDelay < 0 {
		return fmt.Errorf("请求延迟不能为负数")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.MaxBodySizeMB < 0 {
		return fmt.Errorf("最大响应体大小不能为负数")
	}
	if c.DateLayout == "" {
		return fmt.Errorf("日期格式不能为空")
	}
	if len(c.AllowedDomains) == 0 {
		return fmt.Errorf("至少需要一个允许的域名")
	}
	return nil
}

// DateRange 按配置解析日期范围
// start > end 时返回 InvalidRangeError
func (c *CrawlConfig) DateRange() (*DateRange, error) {
	start, err := ParseDate(c.DateLayout, c.StartDate)
	if err != nil {
		return nil, fmt.Errorf("无效的开始日期 %q: %w", c.StartDate, err)
	}
	end, err := ParseDate(c.DateLayout, c.EndDate)
	if err != nil {
		return nil, fmt.Errorf("无效的结束日期 %q: %w", c.EndDate, err)
	}
	return NewDateRange(start, end)
}
