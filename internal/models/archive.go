package models

import (
	"fmt"
	"path"
	"time"
)

const (
	// UnknownPartition 未能提取时间戳时使用的分区名
	UnknownPartition = "unknown"

	// CompressedSuffix 归档文件后缀
	CompressedSuffix = ".gz"
)

// ArchiveTimestamp 页面的归档日期
// 要么是从"Stand"标记解析出的年月日, 要么是 unknown
type ArchiveTimestamp struct {
	Year  int
	Month int
	Day   int
	known bool
}

// NewArchiveTimestamp 创建已解析的时间戳
// 非法日历日期(如 31.02.)返回错误
func NewArchiveTimestamp(year, month, day int) (ArchiveTimestamp, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ArchiveTimestamp{}, fmt.Errorf("非法日期: %04d-%02d-%02d", year, month, day)
	}
	return ArchiveTimestamp{Year: year, Month: month, Day: day, known: true}, nil
}

// UnknownTimestamp 返回 unknown 哨兵值
func UnknownTimestamp() ArchiveTimestamp {
	return ArchiveTimestamp{}
}

// IsUnknown 是否为 unknown
func (t ArchiveTimestamp) IsUnknown() bool {
	return !t.known
}

// Partition 返回分区路径段: <y>/<y>-<m>/<y>-<m>-<d> 或 unknown
func (t ArchiveTimestamp) Partition() string {
	if !t.known {
		return UnknownPartition
	}
	y := fmt.Sprintf("%04d", t.Year)
	ym := fmt.Sprintf("%s-%02d", y, t.Month)
	ymd := fmt.Sprintf("%s-%02d", ym, t.Day)
	return path.Join(y, ym, ymd)
}

// String 实现fmt.Stringer
func (t ArchiveTimestamp) String() string {
	if !t.known {
		return UnknownPartition
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day)
}

// ArchivePath 页面在归档树中的位置
// Dir 使用 '/' 分隔并以 '/' 结尾, 例如 archive/2012/2012-03/2012-03-07/inland/
type ArchivePath struct {
	Dir      string `json:"dir"`
	Filename string `json:"filename"`
}

// Path 返回完整的文件路径
func (p ArchivePath) Path() string {
	return p.Dir + p.Filename
}
