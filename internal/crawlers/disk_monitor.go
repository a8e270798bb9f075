package crawlers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskMonitor 归档目录所在磁盘的可用空间监控
// 结果缓存一秒, 每次写入前调用 Check 的开销可以忽略
type DiskMonitor struct {
	path    string
	minFree uint64

	mu        sync.Mutex
	lastFree  uint64
	lastCheck time.Time
	cacheTTL  time.Duration

	usage func(path string) (*disk.UsageStat, error)
}

// NewDiskMonitor 创建磁盘监控器, minFreeMB 为0时不检查
func NewDiskMonitor(path string, minFreeMB int) *DiskMonitor {
	if minFreeMB < 0 {
		minFreeMB = 0
	}
	return &DiskMonitor{
		path:     path,
		minFree:  uint64(minFreeMB) * 1024 * 1024,
		cacheTTL: time.Second,
		usage:    disk.Usage,
	}
}

// Enabled 是否启用检查
func (m *DiskMonitor) Enabled() bool {
	return m != nil && m.minFree > 0
}

// FreeBytes 返回可用字节数
func (m *DiskMonitor) FreeBytes() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheTTL {
		return m.lastFree, nil
	}

	stat, err := m.usage(existingParent(m.path))
	if err != nil {
		return 0, fmt.Errorf("获取磁盘使用情况失败: %w", err)
	}
	m.lastFree = stat.Free
	m.lastCheck = time.Now()
	return stat.Free, nil
}

// Check 可用空间低于保留值时返回错误
// 无法获取磁盘信息时只记录警告, 不视为失败
func (m *DiskMonitor) Check() error {
	if !m.Enabled() {
		return nil
	}

	free, err := m.FreeBytes()
	if err != nil {
		log.Warn().Err(err).Str("path", m.path).Msg("磁盘空间检查失败")
		return nil
	}
	if free < m.minFree {
		return fmt.Errorf("磁盘可用空间不足: 剩余 %dMB, 保留 %dMB", free/(1024*1024), m.minFree/(1024*1024))
	}
	return nil
}

// existingParent 归档目录可能尚未创建, 向上找到第一个存在的目录
func existingParent(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
