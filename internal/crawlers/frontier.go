package crawlers

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/models"
)

// FrontierConfig 前沿队列配置
type FrontierConfig struct {
	// Range 要归档的日期范围
	Range *models.DateRange

	// IndexURL 根据日期生成索引页URL
	IndexURL func(day time.Time) string

	// Skip 返回true的日期不生成索引任务(断点续爬)
	Skip func(day time.Time) bool

	// OnDayDone 某天的索引页及其所有文章都处理完毕后调用, ok 表示没有任何失败
	OnDayDone func(day time.Time, ok bool)

	// OnDaySkipped Skip 跳过某天时调用
	OnDaySkipped func(day time.Time)
}

// Frontier 待处理任务的前沿队列
//
// 文章任务优先于索引任务出队, 索引任务按日期升序从 DateIterator 惰性生成,
// 因此队列长度受单日文章数约束, 不会因为日期范围很大而膨胀。
// 当所有日期都已生成、没有待处理文章且没有正在处理的任务时, 队列结束。
type Frontier struct {
	mu   sync.Mutex
	wake chan struct{}

	seeds     *models.DateIterator
	seedsDone bool
	indexURL  func(time.Time) string
	skip      func(time.Time) bool
	onDayDone func(time.Time, bool)
	onSkipped func(time.Time)

	// 待处理文章(FIFO)
	articles []*models.Task

	// 已出队但尚未 Done 的任务数
	inflight int

	// 每天尚未完成的任务数
	days map[string]*dayState

	skippedDays int
	closed      bool
}

type dayState struct {
	day     time.Time
	pending int
	failed  bool
}

// NewFrontier 创建前沿队列
func NewFrontier(config FrontierConfig) *Frontier {
	return &Frontier{
		wake:      make(chan struct{}),
		seeds:     config.Range.Iterator(),
		indexURL:  config.IndexURL,
		skip:      config.Skip,
		onDayDone: config.OnDayDone,
		onSkipped: config.OnDaySkipped,
		days:      make(map[string]*dayState),
	}
}

func dayKey(day time.Time) string {
	return day.Format(time.DateOnly)
}

// Next 取出下一个任务, 没有可处理的任务时阻塞
// 队列结束、被关闭或ctx取消时返回false
func (f *Frontier) Next(ctx context.Context) (*models.Task, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, false
		}

		if len(f.articles) > 0 {
			task := f.articles[0]
			f.articles[0] = nil
			f.articles = f.articles[1:]
			f.inflight++
			f.mu.Unlock()
			return task, true
		}

		task, skipped := f.nextSeedLocked()
		if task != nil {
			f.inflight++
			f.mu.Unlock()
			f.notifySkipped(skipped)
			return task, true
		}

		if f.seedsDone && f.inflight == 0 {
			f.closed = true
			f.broadcastLocked()
			f.mu.Unlock()
			f.notifySkipped(skipped)
			return nil, false
		}

		wait := f.wake
		f.mu.Unlock()
		f.notifySkipped(skipped)

		select {
		case <-ctx.Done():
			return nil, false
		case <-wait:
		}
	}
}

// nextSeedLocked 生成下一天的索引任务, 同时返回途中跳过的日期
func (f *Frontier) nextSeedLocked() (*models.Task, []time.Time) {
	var skipped []time.Time
	for !f.seedsDone {
		day, ok := f.seeds.Next()
		if !ok {
			f.seedsDone = true
			return nil, skipped
		}
		if f.skip != nil && f.skip(day) {
			f.skippedDays++
			skipped = append(skipped, day)
			continue
		}
		f.days[dayKey(day)] = &dayState{day: day, pending: 1}
		return models.NewIndexTask(f.indexURL(day), day), skipped
	}
	return nil, skipped
}

// notifySkipped 在锁外回调
func (f *Frontier) notifySkipped(days []time.Time) {
	if f.onSkipped == nil {
		return
	}
	for _, d := range days {
		f.onSkipped(d)
	}
}

// Push 加入一个文章任务
// 必须在产生它的索引任务 Done 之前调用
func (f *Frontier) Push(task *models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if st, ok := f.days[dayKey(task.Date)]; ok {
		st.pending++
	}
	f.articles = append(f.articles, task)
	f.broadcastLocked()
}

// Done 标记任务处理完毕, failed 表示抓取或写入失败
func (f *Frontier) Done(task *models.Task, failed bool) {
	f.mu.Lock()

	f.inflight--
	var finished *dayState
	if st, ok := f.days[dayKey(task.Date)]; ok {
		if failed {
			st.failed = true
		}
		st.pending--
		if st.pending <= 0 {
			delete(f.days, dayKey(task.Date))
			finished = st
		}
	}
	f.broadcastLocked()
	f.mu.Unlock()

	if finished != nil && f.onDayDone != nil {
		f.onDayDone(finished.day, !finished.failed)
	}
}

// Close 关闭队列, 之后 Next 立即返回false, 未处理的任务被丢弃
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.broadcastLocked()
	}
}

// PendingCount 待处理的文章任务数
func (f *Frontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.articles)
}

// SkippedDays 因断点续爬跳过的日期数
func (f *Frontier) SkippedDays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skippedDays
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}
