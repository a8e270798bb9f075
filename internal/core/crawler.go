package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/archive"
	"github.com/RecoveryAshes/tsarchive/internal/crawlers"
	"github.com/RecoveryAshes/tsarchive/internal/extract"
	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// 运行结果
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeAborted     = "aborted"
	OutcomeFailed      = "failed"
)

// Fetcher 抓取能力
// 返回重定向后的最终URL和响应体, 传输层失败返回 *models.FetchError
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error)
}

// Option 爬取器选项
type Option func(*Crawler)

// WithFetcher 替换默认的Colly抓取器
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithFs 指定归档和检查点使用的文件系统
func WithFs(fs afero.Fs) Option {
	return func(c *Crawler) { c.fs = fs }
}

// WithDiskMonitor 替换默认的磁盘监控器
func WithDiskMonitor(m *crawlers.DiskMonitor) Option {
	return func(c *Crawler) { c.disk = m }
}

// WithDayDoneHook 某天处理完毕时回调(进度条)
func WithDayDoneHook(fn func(day time.Time, ok bool)) Option {
	return func(c *Crawler) { c.dayHook = fn }
}

// WithDaySkippedHook 断点续爬跳过某天时回调(进度条)
func WithDaySkippedHook(fn func(day time.Time)) Option {
	return func(c *Crawler) { c.skipHook = fn }
}

// WithRunID 指定运行ID
func WithRunID(id string) Option {
	return func(c *Crawler) { c.runID = id }
}

// Crawler 按日归档爬取的调度器
//
// 流程:
//  1. 为日期范围内的每一天生成索引页任务
//  2. 索引页中的文章链接解析为绝对URL, 按域名策略过滤后加入队列
//  3. 文章页提取"Stand"日期, 计算归档路径, gzip写入
//
// 单个页面的失败只影响该页面(索引页失败只影响当天), 持久化的系统性失败会中止整个爬取。
type Crawler struct {
	config    *Config
	dateRange *models.DateRange
	runID     string

	fs         afero.Fs
	fetcher    Fetcher
	writer     *archive.Writer
	resolver   *archive.PathResolver
	links      *extract.LinkExtractor
	stamps     *extract.TimestampExtractor
	disk       *crawlers.DiskMonitor
	checkpoint *CheckpointStore
	dayHook    func(time.Time, bool)
	skipHook   func(time.Time)

	allowedDomains []string

	mu                  sync.Mutex
	stats               models.CrawlStats
	failedPages         []models.FailedPage
	truncated           bool
	consecutiveFailures int
	startTime           time.Time
	endTime             time.Time
}

// NewCrawler 创建爬取器
func NewCrawler(config *Config, opts ...Option) (*Crawler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dateRange, err := config.Crawl.DateRange()
	if err != nil {
		return nil, err
	}

	selectors, err := config.Selectors.Compile()
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		config:    config,
		dateRange: dateRange,
		resolver:  archive.NewPathResolver(config.Archive.Root),
		links:     selectors.Links,
		stamps:    selectors.Timestamps,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.runID == "" {
		c.runID = models.GenerateID()
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.fetcher == nil {
		fetcher, err := crawlers.NewCollyFetcher(config.Crawl)
		if err != nil {
			return nil, fmt.Errorf("创建抓取器失败: %w", err)
		}
		c.fetcher = fetcher
	}
	if c.disk == nil {
		c.disk = crawlers.NewDiskMonitor(c.resolver.Root(), config.Archive.MinFreeDiskMB)
	}

	c.writer, err = archive.NewWriter(c.fs, config.Archive.CompressionLevel)
	if err != nil {
		return nil, err
	}

	c.checkpoint = NewCheckpointStore(c.fs, config.Crawl.CheckpointDir, dateRange.Bound(), c.runID)

	for _, d := range config.Crawl.AllowedDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			c.allowedDomains = append(c.allowedDomains, d)
		}
	}

	return c, nil
}

// RunID 本次运行ID
func (c *Crawler) RunID() string {
	return c.runID
}

// DateRange 日期范围
func (c *Crawler) DateRange() *models.DateRange {
	return c.dateRange
}

// Checkpoint 检查点存储
func (c *Crawler) Checkpoint() *CheckpointStore {
	return c.checkpoint
}

// Run 执行爬取
//
// ctx 取消后不再派发新任务, 正在进行的抓取-提取-写入周期会完整执行。
// 返回的统计信息在任何情况下都有效; 系统性持久化失败返回 *models.PersistenceError,
// 其错误链包含 models.ErrSystemicPersistence。
func (c *Crawler) Run(ctx context.Context) (models.CrawlStats, error) {
	c.mu.Lock()
	c.startTime = time.Now()
	c.mu.Unlock()

	bound := c.dateRange.Bound()
	utils.Infof("开始归档: %s ~ %s (%d 天)",
		bound.Start.Format(time.DateOnly), bound.End.Format(time.DateOnly), c.dateRange.Len())
	utils.Infof("归档目录: %s, 并发: %d", c.resolver.Root(), c.config.Crawl.Concurrency)

	var skip func(time.Time) bool
	if c.config.Crawl.Resume {
		if err := c.checkpoint.Load(); err != nil {
			return c.finish(), err
		}
		skip = c.checkpoint.IsDone

		remaining := 0
		for d := range c.dateRange.All() {
			if !c.checkpoint.IsDone(d) {
				remaining++
			}
		}
		utils.Infof("断点续爬: 检查点记录 %d 天, 本次待处理 %d 天", c.checkpoint.CompletedCount(), remaining)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	frontier := crawlers.NewFrontier(crawlers.FrontierConfig{
		Range:        c.dateRange,
		IndexURL:     c.indexURL,
		Skip:         skip,
		OnDayDone:    c.dayDone,
		OnDaySkipped: c.skipHook,
	})

	var wg sync.WaitGroup
	for i := 0; i < c.config.Crawl.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(runCtx, cancel, frontier)
		}()
	}
	wg.Wait()
	dropped := frontier.PendingCount()
	frontier.Close()
	utils.Debug("所有worker已退出")

	c.mu.Lock()
	c.stats.Days = c.dateRange.Len()
	c.stats.SkippedDays = frontier.SkippedDays()
	c.mu.Unlock()
	stats := c.finish()

	if cause := context.Cause(runCtx); cause != nil {
		if errors.Is(cause, models.ErrSystemicPersistence) {
			utils.Errorf("归档中止: %v (丢弃 %d 个待处理文章)", cause, dropped)
			return stats, cause
		}
		if err := ctx.Err(); err != nil {
			utils.Warnf("归档被中断: 已写入 %d 个页面, %d 个待处理文章未抓取", stats.Persisted, dropped)
			return stats, err
		}
	}

	utils.Infof("归档完成: 抓取 %d 个页面, 写入 %d 个 (%s), 失败 %d, 耗时 %.2f秒",
		stats.Fetched(), stats.Persisted, utils.FormatBytes(stats.BytesWritten), stats.Failed(), stats.Duration)
	return stats, nil
}

func (c *Crawler) finish() models.CrawlStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
	c.stats.Duration = c.endTime.Sub(c.startTime).Seconds()
	return c.stats
}

// worker 从队列取任务直到队列结束或ctx取消
func (c *Crawler) worker(ctx context.Context, abort context.CancelCauseFunc, frontier *crawlers.Frontier) {
	for {
		task, ok := frontier.Next(ctx)
		if !ok {
			return
		}

		// 已开始的周期不受取消影响
		cycleCtx := context.WithoutCancel(ctx)

		var failed bool
		switch task.Kind {
		case models.KindFetchIndex:
			failed = c.processIndex(cycleCtx, task, frontier)
		case models.KindFetchArticle:
			failed = c.processArticle(cycleCtx, task, abort)
		}
		frontier.Done(task, failed)
	}
}

// indexURL 根据模板生成索引页URL
func (c *Crawler) indexURL(day time.Time) string {
	return strings.ReplaceAll(c.config.Crawl.IndexURLTemplate, models.IndexDatePlaceholder,
		day.Format(c.config.Crawl.DateLayout))
}

func (c *Crawler) setState(task *models.Task, state models.TaskState) {
	task.State = state
	log.Debug().
		Str("url", task.URL).
		Str("role", string(task.Role())).
		Str("date", task.Date.Format(time.DateOnly)).
		Str("state", string(state)).
		Msg("任务状态变更")
}

// processIndex 处理索引页, 返回是否失败
func (c *Crawler) processIndex(ctx context.Context, task *models.Task, frontier *crawlers.Frontier) bool {
	page, ok := c.fetch(ctx, task, func(s *models.CrawlStats) { s.IndexFailed++ })
	if !ok {
		return true
	}

	doc, err := extract.Parse(page.Body)
	if err != nil {
		utils.Warnf("索引页解析失败 [%s]: %v", page.URL, err)
		c.recordFailure(task, "parse", err, func(s *models.CrawlStats) { s.IndexFailed++ })
		return true
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		c.recordFailure(task, "parse", err, func(s *models.CrawlStats) { s.IndexFailed++ })
		return true
	}

	var discovered, offsite int
	for _, href := range c.links.Extract(doc) {
		link, ok := c.follow(base, href)
		if !ok {
			offsite++
			log.Debug().Str("href", href).Str("index", page.URL).Msg("跳过域外或无效链接")
			continue
		}
		discovered++
		frontier.Push(models.NewArticleTask(link, page.Date, page.URL))
	}

	c.mu.Lock()
	c.stats.IndexFetched++
	c.stats.ArticlesDiscovered += discovered
	c.stats.Offsite += offsite
	c.mu.Unlock()

	if discovered == 0 {
		utils.Debugf("索引页没有文章链接: %s", page.URL)
	}
	c.setState(task, models.StateProcessed)
	return false
}

// fetch 抓取任务URL, 失败时记录并返回false
// 返回的文档携带最终URL和任务的角色、来源日期
func (c *Crawler) fetch(ctx context.Context, task *models.Task, onFail func(*models.CrawlStats)) (*models.FetchedDocument, bool) {
	c.setState(task, models.StateFetching)

	res, err := c.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		c.setState(task, models.StateFetchFailed)
		if task.Role() == models.RoleIndex {
			utils.Warnf("索引页抓取失败 [%s]: %v", task.Date.Format(time.DateOnly), err)
		} else {
			utils.Warnf("文章抓取失败: %v", err)
		}
		c.recordFailure(task, "fetch", err, onFail)
		return nil, false
	}
	c.setState(task, models.StateFetched)

	return &models.FetchedDocument{
		URL:  res.URL,
		Role: task.Role(),
		Date: task.Date,
		Body: res.Body,
	}, true
}

// follow 将链接解析为绝对URL并检查域名策略
func (c *Crawler) follow(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""

	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !c.allowedHost(abs.Hostname()) {
		return "", false
	}
	return abs.String(), true
}

// allowedHost 主机名等于允许的域名或是其子域名
func (c *Crawler) allowedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, d := range c.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// processArticle 处理文章页, 返回是否失败
func (c *Crawler) processArticle(ctx context.Context, task *models.Task, abort context.CancelCauseFunc) bool {
	page, ok := c.fetch(ctx, task, func(s *models.CrawlStats) { s.ArticlesFailed++ })
	if !ok {
		return true
	}

	c.mu.Lock()
	c.stats.ArticlesFetched++
	c.mu.Unlock()

	return c.persist(task, page, abort)
}

// persist 计算归档路径并写入, 返回是否失败
func (c *Crawler) persist(task *models.Task, page *models.FetchedDocument, abort context.CancelCauseFunc) bool {
	// 页面名取自最终URL, 目录URL不是内容页
	final, err := url.Parse(page.URL)
	if err != nil || archive.PageName(final) == "" {
		c.skip(task, page.URL, "非内容页面")
		return false
	}

	ts := models.UnknownTimestamp()
	if doc, err := extract.Parse(page.Body); err == nil {
		ts = c.stamps.Extract(doc)
	}

	p, err := c.resolver.Resolve(page.URL, ts)
	if err != nil {
		c.skip(task, page.URL, err.Error())
		return false
	}

	if err := c.disk.Check(); err != nil {
		perr := &models.PersistenceError{
			Op:    "reserve",
			Path:  c.resolver.Root(),
			Cause: fmt.Errorf("%w: %w", models.ErrSystemicPersistence, err),
		}
		c.recordFailure(task, "persist", perr, func(s *models.CrawlStats) { s.PersistFailed++ })
		abort(perr)
		return true
	}

	n, err := c.writer.Write(p, page.Body)
	if err != nil {
		c.handlePersistError(task, err, abort)
		return true
	}

	c.mu.Lock()
	c.stats.Persisted++
	c.stats.BytesWritten += n
	if ts.IsUnknown() {
		c.stats.Undated++
	}
	c.consecutiveFailures = 0
	c.mu.Unlock()

	log.Debug().Str("url", page.URL).Str("path", p.Path()).Int64("bytes", n).Msg("页面已归档")
	c.setState(task, models.StateProcessed)
	return false
}

func (c *Crawler) skip(task *models.Task, finalURL, reason string) {
	c.mu.Lock()
	c.stats.Skipped++
	c.mu.Unlock()
	utils.Debugf("跳过页面 [%s]: %s", finalURL, reason)
	c.setState(task, models.StateProcessed)
}

// handlePersistError 记录写入失败, 判断是否为系统性失败
func (c *Crawler) handlePersistError(task *models.Task, err error, abort context.CancelCauseFunc) {
	var consecutive int
	c.recordFailure(task, "persist", err, func(s *models.CrawlStats) {
		s.PersistFailed++
		c.consecutiveFailures++
		consecutive = c.consecutiveFailures
	})
	utils.Error(err, "归档写入失败: "+task.URL)

	reason := ""
	switch {
	case errors.Is(err, syscall.ENOSPC):
		reason = "磁盘已满"
	case consecutive >= c.config.Archive.MaxConsecutiveFailures:
		reason = fmt.Sprintf("连续 %d 次写入失败", consecutive)
	default:
		if derr := c.disk.Check(); derr != nil {
			reason = derr.Error()
		}
	}
	if reason == "" {
		return
	}

	systemic := &models.PersistenceError{Op: "write", Path: task.URL, Cause: fmt.Errorf("%w (%s): %w", models.ErrSystemicPersistence, reason, err)}
	var perr *models.PersistenceError
	if errors.As(err, &perr) {
		systemic.Op = perr.Op
		systemic.Path = perr.Path
	}
	abort(systemic)
}

// recordFailure 在锁内更新统计并记录失败页面
func (c *Crawler) recordFailure(task *models.Task, errType string, err error, update func(*models.CrawlStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	update(&c.stats)

	limit := c.config.Report.MaxFailedEntries
	if limit > 0 && len(c.failedPages) >= limit {
		c.truncated = true
		return
	}
	c.failedPages = append(c.failedPages, models.FailedPage{
		URL:       task.URL,
		Role:      task.Role(),
		ErrorType: errType,
		ErrorMsg:  err.Error(),
		Date:      task.Date,
	})
}

// dayDone 某天的索引页和全部文章处理完毕
func (c *Crawler) dayDone(day time.Time, ok bool) {
	if ok {
		if err := c.checkpoint.MarkDay(day); err != nil {
			utils.Warnf("记录检查点失败 [%s]: %v", day.Format(time.DateOnly), err)
		}
	} else {
		utils.Debugf("日期 %s 存在失败页面, 不记录检查点", day.Format(time.DateOnly))
	}
	if c.dayHook != nil {
		c.dayHook(day, ok)
	}
}

// Report 生成爬取报告
func (c *Crawler) Report(runErr error) *models.CrawlReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	bound := c.dateRange.Bound()
	report := &models.CrawlReport{
		RunID:       c.runID,
		IndexURL:    c.config.Crawl.IndexURLTemplate,
		ArchiveRoot: c.resolver.Root(),
		StartDate:   bound.Start.Format(time.DateOnly),
		EndDate:     bound.End.Format(time.DateOnly),
		StartTime:   c.startTime,
		EndTime:     c.endTime,
		Duration:    c.stats.Duration,
		Outcome:     Outcome(runErr),
		Stats:       c.stats,
		FailedPages: append([]models.FailedPage(nil), c.failedPages...),
		Truncated:   c.truncated,
		Config:      c.config.Crawl,
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	return report
}

// Outcome 根据Run返回的错误判断运行结果
func Outcome(runErr error) string {
	switch {
	case runErr == nil:
		return OutcomeCompleted
	case errors.Is(runErr, models.ErrSystemicPersistence):
		return OutcomeAborted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return OutcomeInterrupted
	default:
		return OutcomeFailed
	}
}
