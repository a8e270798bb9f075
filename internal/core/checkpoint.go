package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/archive"
	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
	"github.com/spf13/afero"
)

// CheckpointStore 断点续爬检查点
//
// 每个日期范围对应一个检查点文件, 只记录索引页和全部文章都成功处理的日期。
// 每次记录后立即原子写回磁盘, 进程被杀死时最多丢失正在处理的日期。
type CheckpointStore struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	cp   *models.Checkpoint
	done map[string]bool
}

// NewCheckpointStore 创建检查点存储
func NewCheckpointStore(fs afero.Fs, dir string, bound models.DateBound, runID string) *CheckpointStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "checkpoints"
	}
	now := time.Now()
	return &CheckpointStore{
		fs:   fs,
		path: filepath.Join(dir, models.CheckpointFilename(bound)),
		cp: &models.Checkpoint{
			RunID:     runID,
			StartDate: bound.Start.Format(time.DateOnly),
			EndDate:   bound.End.Format(time.DateOnly),
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(map[string]bool),
	}
}

// Path 检查点文件路径
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load 读取已有检查点, 文件不存在时保持为空
func (s *CheckpointStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Infof("未找到检查点文件, 从头开始: %s", s.path)
			return nil
		}
		return fmt.Errorf("读取检查点失败: %w", err)
	}

	var cp models.Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return fmt.Errorf("解析检查点失败 [%s]: %w", s.path, err)
	}
	if cp.StartDate != s.cp.StartDate || cp.EndDate != s.cp.EndDate {
		return fmt.Errorf("检查点日期范围不匹配: 文件为 %s~%s, 当前为 %s~%s",
			cp.StartDate, cp.EndDate, s.cp.StartDate, s.cp.EndDate)
	}

	// 保留当前运行ID
	cp.RunID = s.cp.RunID
	s.cp = &cp
	s.done = cp.Completed()

	utils.Infof("已加载检查点: %d 天已完成 (%s)", len(s.done), s.path)
	return nil
}

// IsDone 该日期是否已完成
func (s *CheckpointStore) IsDone(day time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[day.Format(time.DateOnly)]
}

// MarkDay 记录完成的日期并写回磁盘
func (s *CheckpointStore) MarkDay(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cp.MarkDay(day) {
		return nil
	}
	s.done[day.Format(time.DateOnly)] = true

	data, err := s.cp.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化检查点失败: %w", err)
	}
	if err := archive.WriteFileAtomic(s.fs, s.path, data); err != nil {
		return fmt.Errorf("保存检查点失败: %w", err)
	}
	return nil
}

// CompletedCount 已完成的日期数
func (s *CheckpointStore) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}
