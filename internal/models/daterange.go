package models

import (
	"iter"
	"time"
)

// DateBound 归档时间窗口(闭区间), 配置时确定后不再修改
type DateBound struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DateRange 按天枚举 [Start, End] 内的所有日期
// 序列是惰性的、有限的、可重复遍历的
type DateRange struct {
	bound DateBound
}

// NewDateRange 创建日期范围
// start > end 时返回 InvalidRangeError, 不会静默产生空序列
func NewDateRange(start, end time.Time) (*DateRange, error) {
	s := TruncateDay(start)
	e := TruncateDay(end)
	if s.After(e) {
		return nil, &InvalidRangeError{Start: s, End: e}
	}
	return &DateRange{bound: DateBound{Start: s, End: e}}, nil
}

// Bound 返回规范化后的边界
func (r *DateRange) Bound() DateBound {
	return r.bound
}

// Len 返回范围内的天数: (end - start).days + 1
// 按Unix秒计算, time.Duration 在约292年处饱和
func (r *DateRange) Len() int {
	return int((r.bound.End.Unix()-r.bound.Start.Unix())/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// All 返回升序日期序列
func (r *DateRange) All() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		it := r.Iterator()
		for {
			d, ok := it.Next()
			if !ok || !yield(d) {
				return
			}
		}
	}
}

// Iterator 返回一个新的拉取式游标
func (r *DateRange) Iterator() *DateIterator {
	return &DateIterator{next: r.bound.Start, end: r.bound.End}
}

// DateIterator 日期游标, 非并发安全
type DateIterator struct {
	next time.Time
	end  time.Time
	done bool
}

// Next 返回下一个日期; 序列结束时返回 false
func (it *DateIterator) Next() (time.Time, bool) {
	if it.done || it.next.After(it.end) {
		it.done = true
		return time.Time{}, false
	}
	d := it.next
	it.next = it.next.AddDate(0, 0, 1)
	return d, true
}

// TruncateDay 将时间截断为UTC零点(只保留日历日期)
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 按 layout 解析日期字符串
func ParseDate(layout, value string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return TruncateDay(t), nil
}
