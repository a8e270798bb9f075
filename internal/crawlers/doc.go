// Package crawlers 提供按日归档爬取的抓取与调度组件
//
// # 核心组件
//
// ## CollyFetcher
//
// 基于Colly的抓取器, 返回重定向后的最终URL和原始响应字节。
// 限速(延迟、随机延迟、单域名并发)、robots.txt、响应体大小上限都交给Colly处理,
// br/deflate 编码的响应由抓取器自行解压。
//
//	fetcher, err := NewCollyFetcher(config.Crawl)
//	res, err := fetcher.Fetch(ctx, "https://www.tagesschau.de/archiv/?datum=2012-03-07")
//
// ## Frontier (前沿队列)
//
// 并发安全的任务队列。索引任务按日期升序惰性生成, 文章任务优先出队,
// 某一天的索引页和全部文章都处理完后回调 OnDayDone(用于断点续爬检查点)。
//
//	frontier := NewFrontier(FrontierConfig{
//	    Range:     dateRange,
//	    IndexURL:  func(d time.Time) string { ... },
//	    Skip:      checkpoint.IsDone,
//	    OnDayDone: checkpoint.MarkDay,
//	})
//
//	for {
//	    task, ok := frontier.Next(ctx)
//	    if !ok {
//	        break
//	    }
//	    // 处理任务, 文章链接通过 frontier.Push 加入
//	    frontier.Done(task, failed)
//	}
//
// ## DiskMonitor (磁盘监控器)
//
// 使用gopsutil检查归档目录所在磁盘的可用空间, 低于保留值时
// 调度器将持久化失败视为系统性失败并中止爬取。
//
// # 配置参数
//
//	crawl:
//	  concurrency: 8               # worker数量, 同时也是单域名并发上限
//	  delay: 250ms                 # 请求间隔
//	  random_delay: 250ms          # 额外随机延迟
//	  request_timeout: 30s
//	  respect_robots_txt: true
//	  max_body_size_mb: 10         # 0 表示不限制
//
//	archive:
//	  min_free_disk_mb: 512        # 0 表示不检查
//
// # 并发安全
//
//   - CollyFetcher: 每次抓取克隆collector, 回调互不干扰
//   - Frontier: sync.Mutex + 广播channel
//   - DiskMonitor: sync.Mutex
package crawlers
