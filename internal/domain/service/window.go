package service

import (
	"sort"

	"tickrelay/internal/domain/model"
)

// Window 单个 symbol 的价格采样窗口，按时间升序
type Window struct {
	samples []model.Sample
}

// Push 追加采样点
// 时间戳不允许倒退（系统时钟回拨时钳到最后一个采样的时间），保证二分查找的前提
func (w *Window) Push(s model.Sample) model.Sample {
	if n := len(w.samples); n > 0 && s.Time < w.samples[n-1].Time {
		s.Time = w.samples[n-1].Time
	}
	w.samples = append(w.samples, s)
	return s
}

// Evict 从头部移除所有 Time < cutoff 的采样，返回移除个数
func (w *Window) Evict(cutoff int64) int {
	i := 0
	for i < len(w.samples) && w.samples[i].Time < cutoff {
		i++
	}
	if i == 0 {
		return 0
	}
	w.samples = w.samples[i:]
	// 头部反复切片后底层数组只增不减，剩余不到一半时拷贝一次
	if cap(w.samples) > 64 && len(w.samples) < cap(w.samples)/2 {
		compact := make([]model.Sample, len(w.samples), len(w.samples)*2)
		copy(compact, w.samples)
		w.samples = compact
	}
	return i
}

// AtOrBefore 二分查找 Time <= target 的最后一个采样
func (w *Window) AtOrBefore(target int64) (model.Sample, bool) {
	idx := searchAtOrBefore(w.samples, target)
	if idx < 0 {
		return model.Sample{}, false
	}
	return w.samples[idx], true
}

func (w *Window) Len() int { return len(w.samples) }

// Samples 返回窗口副本
func (w *Window) Samples() []model.Sample {
	out := make([]model.Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// searchAtOrBefore returns the greatest index i with samples[i].Time <= target,
// or -1 when every sample is newer than target.
func searchAtOrBefore(samples []model.Sample, target int64) int {
	return sort.Search(len(samples), func(i int) bool {
		return samples[i].Time > target
	}) - 1
}
