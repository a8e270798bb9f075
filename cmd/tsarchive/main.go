package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/core"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// 归档参数
	startDate   string
	endDate     string
	concurrency int
	delay       time.Duration
	outputDir   string
	resume      bool
	noProgress  bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "tsarchive",
	Short: "tagesschau 日期归档爬取工具",
	Long: `tsarchive - 按日期范围归档 tagesschau.de 新闻页面

对范围内的每一天抓取归档索引页, 跟随其中的文章链接,
按文章"Stand"日期把压缩后的HTML写入分区目录:
  <root>/<YYYY>/<YYYY-MM>/<YYYY-MM-DD>/<ressort>/<seite>.html.gz
无法确定日期的页面写入 <root>/unknown/...

示例:
  # 使用默认日期范围 (2010-01-01 ~ 2014-12-31)
  tsarchive

  # 指定日期范围和并发数
  tsarchive --start 2012-03-01 --end 2012-03-31 --concurrency 4 -o /data/archiv

  # 中断后继续
  tsarchive --start 2012-03-01 --end 2012-03-31 --resume

  # 自定义HTTP头部
  tsarchive -H "Accept-Language: de-DE" -H "Cookie: consent=1"

  # 验证配置文件
  tsarchive --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := config.LogConfig()

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(appConfig.Crawl.DateLayout, startDate, endDate, concurrency, delay); err != nil {
			return err
		}

		cliHeaders, err := parseHeaders(headers)
		if err != nil {
			return err
		}

		overrides := core.CLIOverrides{
			StartDate:   startDate,
			EndDate:     endDate,
			Concurrency: concurrency,
			Output:      outputDir,
			Resume:      resume,
			Headers:     cliHeaders,
		}
		if cmd.Flags().Changed("delay") {
			overrides.Delay = &delay
		}
		appConfig.MergeCLIFlags(overrides)

		// 如果用户请求验证配置
		if validateConfig {
			return printValidatedConfig(appConfig)
		}

		return runArchive(appConfig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tsarchive %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func runArchive(config *core.Config) error {
	// Ctrl+C 后不再派发新任务, 等待正在写入的页面完成
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []core.Option
	var finish func()
	if !noProgress {
		r, err := config.Crawl.DateRange()
		if err != nil {
			return err
		}
		bar := utils.NewProgressBar(r.Len(), "归档日期", os.Stdout)
		finish = func() { _ = bar.Finish() }
		// 断点续爬跳过的日期同样计入进度
		opts = append(opts,
			core.WithDayDoneHook(func(day time.Time, ok bool) { _ = bar.Add(1) }),
			core.WithDaySkippedHook(func(day time.Time) { _ = bar.Add(1) }),
		)
	}

	crawler, err := core.NewCrawler(config, opts...)
	if err != nil {
		return fmt.Errorf("创建爬取器失败: %w", err)
	}

	stopNotice := context.AfterFunc(ctx, func() {
		utils.Warn("收到中断信号, 等待进行中的页面写入完成...")
	})
	stats, runErr := crawler.Run(ctx)
	stopNotice()
	if finish != nil {
		finish()
	}

	// 中断或中止时也生成报告
	reporter := utils.NewReporter(afero.NewOsFs(), config.Report.Dir)
	reportPath, err := reporter.GenerateReport(crawler.Report(runErr))
	if err != nil {
		utils.Error(err, "生成报告失败")
	}

	// 显示统计结果
	fmt.Println("\n==================================================")
	fmt.Println("📊 归档统计")
	fmt.Println("==================================================")
	fmt.Printf("🆔 运行ID: %s\n", crawler.RunID())
	fmt.Printf("📅 日期: %d (跳过 %d)\n", stats.Days, stats.SkippedDays)
	fmt.Printf("✅ 索引页: %d (失败 %d)\n", stats.IndexFetched, stats.IndexFailed)
	fmt.Printf("✅ 文章页: %d / 发现 %d (失败 %d)\n", stats.ArticlesFetched, stats.ArticlesDiscovered, stats.ArticlesFailed)
	fmt.Printf("✅ 写入归档: %d (无日期 %d)\n", stats.Persisted, stats.Undated)
	fmt.Printf("⏭️  域外链接: %d, 非内容页: %d\n", stats.Offsite, stats.Skipped)
	fmt.Printf("❌ 写入失败: %d\n", stats.PersistFailed)
	fmt.Printf("📦 总大小: %s\n", utils.FormatBytes(stats.BytesWritten))
	fmt.Printf("⏱️  总耗时: %s\n", utils.FormatDuration(time.Duration(stats.Duration*float64(time.Second))))
	fmt.Printf("🏁 结果: %s\n", core.Outcome(runErr))
	if reportPath != "" {
		fmt.Printf("📄 报告: %s\n", reportPath)
	}
	fmt.Println("==================================================")

	switch {
	case runErr == nil:
		utils.Info("✨ 归档任务完成!")
		return nil
	case errors.Is(runErr, context.Canceled):
		utils.Warnf("归档被中断, 使用 --resume 继续: %s", crawler.Checkpoint().Path())
		return nil
	default:
		return fmt.Errorf("归档失败: %w", runErr)
	}
}

// printValidatedConfig 验证配置并输出(敏感头部脱敏)
func printValidatedConfig(config *core.Config) error {
	utils.Info("🔍 验证配置...")
	if err := config.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	r, err := config.Crawl.DateRange()
	if err != nil {
		return err
	}

	utils.Info("✅ 配置验证通过!")
	utils.Infof("日期范围: %s ~ %s (%d 天)", config.Crawl.StartDate, config.Crawl.EndDate, r.Len())
	utils.Infof("索引URL: %s", config.Crawl.IndexURLTemplate)
	utils.Infof("归档目录: %s", config.Archive.Root)
	utils.Infof("选择器: 链接=%s 日期=%s", config.Selectors.TeaserLink, config.Selectors.Metatextline)

	safeHeaders := utils.NewHeaderRedactor().RedactMap(config.Crawl.Headers)
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 归档参数
	rootCmd.Flags().StringVar(&startDate, "start", "", "开始日期 (格式同 crawl.date_layout, 默认 YYYY-MM-DD, 包含)")
	rootCmd.Flags().StringVar(&endDate, "end", "", "结束日期 (格式同 crawl.date_layout, 默认 YYYY-MM-DD, 包含)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "并发抓取数 (默认使用配置文件)")
	rootCmd.Flags().DurationVar(&delay, "delay", 0, "同一域名请求间隔, 如 500ms")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "归档根目录")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "跳过检查点中已完成的日期")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
