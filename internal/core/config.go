package core

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/archive"
	"github.com/RecoveryAshes/tsarchive/internal/extract"
	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 TSARCHIVE_CRAWL_CONCURRENCY=16
const EnvPrefix = "TSARCHIVE"

// Config 应用程序配置
type Config struct {
	Crawl     models.CrawlConfig `mapstructure:"crawl"`
	Selectors SelectorConfig     `mapstructure:"selectors"`
	Archive   ArchiveConfig      `mapstructure:"archive"`
	Logging   LoggingConfig      `mapstructure:"logging"`
	Report    ReportConfig       `mapstructure:"report"`
}

// SelectorConfig 页面选择器配置, 支持CSS和XPath
type SelectorConfig struct {
	TeaserLink   string `mapstructure:"teaser_link" json:"teaser_link"`
	TeaserAttr   string `mapstructure:"teaser_attr" json:"teaser_attr"`
	Metatextline string `mapstructure:"metatextline" json:"metatextline"`
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	Root             string `mapstructure:"root"`
	CompressionLevel int    `mapstructure:"compression_level"`

	// MinFreeDiskMB 磁盘可用空间低于此值时中止爬取, 0 表示不检查
	MinFreeDiskMB int `mapstructure:"min_free_disk_mb"`

	// MaxConsecutiveFailures 连续写入失败达到此值时中止爬取
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ReportConfig 报告配置
type ReportConfig struct {
	Dir string `mapstructure:"dir"`

	// MaxFailedEntries 报告中最多记录的失败页面数
	MaxFailedEntries int `mapstructure:"max_failed_entries"`
}

// LoadConfig 加载配置文件
// 优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tsarchive"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		// 配置文件不存在,使用默认值
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}

	return &config, nil
}

// DefaultConfig 返回全部使用默认值的配置
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// 默认值总能解码
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.start_date", "2010-01-01")
	v.SetDefault("crawl.end_date", "2014-12-31")
	v.SetDefault("crawl.date_layout", time.DateOnly)
	v.SetDefault("crawl.index_url_template", "https://www.tagesschau.de/archiv/?datum={date}")
	v.SetDefault("crawl.allowed_domains", []string{"tagesschau.de"})
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.delay", "0s")
	v.SetDefault("crawl.random_delay", "0s")
	v.SetDefault("crawl.request_timeout", "30s")
	v.SetDefault("crawl.user_agent", "")
	v.SetDefault("crawl.headers", map[string]string{})
	v.SetDefault("crawl.respect_robots_txt", true)
	v.SetDefault("crawl.max_body_size_mb", 10)
	v.SetDefault("crawl.resume", false)
	v.SetDefault("crawl.checkpoint_dir", "checkpoints")

	// 选择器默认值
	v.SetDefault("selectors.teaser_link", extract.DefaultTeaserSelector)
	v.SetDefault("selectors.teaser_attr", extract.DefaultTeaserAttr)
	v.SetDefault("selectors.metatextline", extract.DefaultStandSelector)

	// 归档配置默认值
	v.SetDefault("archive.root", archive.DefaultRoot)
	v.SetDefault("archive.compression_level", -1)
	v.SetDefault("archive.min_free_disk_mb", 256)
	v.SetDefault("archive.max_consecutive_failures", 20)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 报告配置默认值
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.max_failed_entries", 1000)
}

// Validate 验证配置
// 日期范围非法时返回 *models.InvalidRangeError, 在爬取开始前暴露
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("爬取配置无效: %w", err)
	}
	if err := models.ValidateIndexTemplate(c.Crawl.IndexURLTemplate); err != nil {
		return fmt.Errorf("索引URL模板无效: %w", err)
	}
	if _, err := c.Crawl.DateRange(); err != nil {
		return err
	}
	if err := utils.NewHeaderValidator().ValidateMap(c.Crawl.Headers); err != nil {
		return err
	}

	if _, err := c.Selectors.Compile(); err != nil {
		return err
	}

	if c.Archive.CompressionLevel < -1 || c.Archive.CompressionLevel > 9 {
		return fmt.Errorf("压缩级别必须在-1到9之间,当前值: %d", c.Archive.CompressionLevel)
	}
	if c.Archive.MinFreeDiskMB < 0 {
		return fmt.Errorf("磁盘保留空间不能为负数")
	}
	if c.Archive.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("连续写入失败上限必须大于0")
	}
	if c.Report.MaxFailedEntries < 0 {
		return fmt.Errorf("失败页面记录上限不能为负数")
	}
	return nil
}

// CompiledSelectors 编译后的选择器
type CompiledSelectors struct {
	Links      *extract.LinkExtractor
	Timestamps *extract.TimestampExtractor
}

// Compile 编译选择器配置
func (s SelectorConfig) Compile() (*CompiledSelectors, error) {
	teaser, err := extract.NewSelector(s.TeaserLink)
	if err != nil {
		return nil, fmt.Errorf("selectors.teaser_link: %w", err)
	}
	stand, err := extract.NewSelector(s.Metatextline)
	if err != nil {
		return nil, fmt.Errorf("selectors.metatextline: %w", err)
	}
	return &CompiledSelectors{
		Links:      extract.NewLinkExtractor(teaser, s.TeaserAttr),
		Timestamps: extract.NewTimestampExtractor(stand),
	}, nil
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行参数, 零值表示未指定
type CLIOverrides struct {
	StartDate   string
	EndDate     string
	Concurrency int
	Delay       *time.Duration
	Output      string
	Resume      bool
	Headers     map[string]string
}

// MergeCLIFlags 合并命令行参数到配置
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	// 命令行参数优先于配置文件
	if o.StartDate != "" {
		c.Crawl.StartDate = o.StartDate
	}
	if o.EndDate != "" {
		c.Crawl.EndDate = o.EndDate
	}
	if o.Concurrency > 0 {
		c.Crawl.Concurrency = o.Concurrency
	}
	if o.Delay != nil {
		c.Crawl.Delay = *o.Delay
	}
	if o.Output != "" {
		c.Archive.Root = o.Output
	}
	if o.Resume {
		c.Crawl.Resume = true
	}
	if len(o.Headers) > 0 {
		merged := make(map[string]string, len(c.Crawl.Headers)+len(o.Headers))
		for k, v := range c.Crawl.Headers {
			merged[http.CanonicalHeaderKey(k)] = v
		}
		for k, v := range o.Headers {
			merged[http.CanonicalHeaderKey(k)] = v
		}
		c.Crawl.Headers = merged
	}
}
