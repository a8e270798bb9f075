package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Checkpoint 检查点
// 只记录整棵子树(索引页 + 全部文章页)都成功处理的日期
type Checkpoint struct {
	// 任务信息
	RunID     string `json:"run_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	// 已完成的日期(YYYY-MM-DD)
	CompletedDays []string `json:"completed_days"`

	// 时间戳
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointFilename 生成检查点文件名
func CheckpointFilename(bound DateBound) string {
	return fmt.Sprintf("checkpoint_%s_%s.json",
		bound.Start.Format(time.DateOnly), bound.End.Format(time.DateOnly))
}

// Completed 返回已完成日期集合
func (c *Checkpoint) Completed() map[string]bool {
	done := make(map[string]bool, len(c.CompletedDays))
	for _, d := range c.CompletedDays {
		done[d] = true
	}
	return done
}

// MarkDay 记录完成的日期, 重复记录无副作用
func (c *Checkpoint) MarkDay(day time.Time) bool {
	key := day.Format(time.DateOnly)
	idx := sort.SearchStrings(c.CompletedDays, key)
	if idx < len(c.CompletedDays) && c.CompletedDays[idx] == key {
		return false
	}
	c.CompletedDays = append(c.CompletedDays, "")
	copy(c.CompletedDays[idx+1:], c.CompletedDays[idx:])
	c.CompletedDays[idx] = key
	c.UpdatedAt = time.Now()
	return true
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	sort.Strings(c.CompletedDays)
	return nil
}
