package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/tsarchive/internal/archive"
	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
)

// Reporter 报告生成器
type Reporter struct {
	fs         afero.Fs
	reportsDir string
}

// NewReporter 创建报告生成器, fs 为nil时使用本地文件系统
func NewReporter(fs afero.Fs, reportsDir string) *Reporter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if reportsDir == "" {
		reportsDir = "reports"
	}
	return &Reporter{fs: fs, reportsDir: reportsDir}
}

// ReportPath 返回某次运行的报告文件路径
func (r *Reporter) ReportPath(runID string) string {
	return filepath.Join(r.reportsDir, fmt.Sprintf("crawl_report_%s.json", runID))
}

// GenerateReport 原子写入爬取报告, 返回报告文件路径
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	path := r.ReportPath(report.RunID)
	if err := archive.WriteFileAtomic(r.fs, path, data); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Infof("报告已生成: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string, out io.Writer) *progressbar.ProgressBar {
	if out == nil {
		out = os.Stdout
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("天"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
