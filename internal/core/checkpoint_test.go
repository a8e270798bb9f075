package core

import (
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/spf13/afero"
)

func testBound(t *testing.T) models.DateBound {
	t.Helper()
	r, err := models.NewDateRange(time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2012, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDateRange() error = %v", err)
	}
	return r.Bound()
}

func TestCheckpointStore_MarkAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	bound := testBound(t)

	s := NewCheckpointStore(fs, "checkpoints", bound, "lauf-1")
	if !strings.HasSuffix(s.Path(), "checkpoint_2012-03-01_2012-03-31.json") {
		t.Errorf("Path() = %s", s.Path())
	}

	d7 := time.Date(2012, 3, 7, 0, 0, 0, 0, time.UTC)
	d8 := time.Date(2012, 3, 8, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{d8, d7, d8} {
		if err := s.MarkDay(d); err != nil {
			t.Fatalf("MarkDay() error = %v", err)
		}
	}
	if s.CompletedCount() != 2 {
		t.Errorf("CompletedCount() = %d, want 2", s.CompletedCount())
	}

	reloaded := NewCheckpointStore(fs, "checkpoints", bound, "lauf-2")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reloaded.IsDone(d7) || !reloaded.IsDone(d8) {
		t.Error("重新加载后应保留已完成日期")
	}
	if reloaded.IsDone(time.Date(2012, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Error("未完成的日期不应标记为完成")
	}
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	s := NewCheckpointStore(afero.NewMemMapFs(), "", testBound(t), "lauf")
	if err := s.Load(); err != nil {
		t.Errorf("文件不存在时 Load() 不应失败: %v", err)
	}
	if s.CompletedCount() != 0 {
		t.Errorf("CompletedCount() = %d", s.CompletedCount())
	}
}

func TestCheckpointStore_LoadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewCheckpointStore(fs, "checkpoints", testBound(t), "lauf")
	if err := afero.WriteFile(fs, s.Path(), []byte("{kaputt"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.Load(); err == nil {
		t.Error("损坏的检查点应返回错误")
	}
}

func TestCheckpointStore_RangeMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewCheckpointStore(fs, "checkpoints", testBound(t), "lauf")
	data := `{"run_id":"x","start_date":"2010-01-01","end_date":"2010-01-31","completed_days":["2010-01-05"]}`
	if err := afero.WriteFile(fs, s.Path(), []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.Load(); err == nil {
		t.Error("日期范围不匹配应返回错误")
	}
}
