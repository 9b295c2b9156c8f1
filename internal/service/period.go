package service

import (
	"fmt"
	"time"
)

// Window 周期窗口，毫秒时间戳闭区间 [Start, End]
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Valid 窗口是否合法
func (w Window) Valid() bool {
	return w.Start > 0 && w.End > w.Start
}

// Days 窗口覆盖的天数（向上取整，至少 1）
func (w Window) Days() int {
	if !w.Valid() {
		return 0
	}
	ms := w.End - w.Start
	days := int((ms + dayMs - 1) / dayMs)
	if days < 1 {
		days = 1
	}
	return days
}

// Previous 紧邻的等长前置窗口
func (w Window) Previous() Window {
	length := w.End - w.Start
	return Window{Start: w.Start - length - 1, End: w.Start - 1}
}

// Key 周期键（起止拼接），用于对齐行为评分序列与成果序列
func (w Window) Key() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

const dayMs = int64(24 * time.Hour / time.Millisecond)

// ComparisonMode 对比窗口的选择方式
type ComparisonMode string

const (
	ComparePrevious      ComparisonMode = "previous"       // 紧邻等长窗口（默认）
	ComparePreviousMonth ComparisonMode = "previous_month" // 上月同窗口
	ComparePreviousYear  ComparisonMode = "previous_year"  // 去年同窗口
	CompareCustom        ComparisonMode = "custom"         // 调用方指定
)

// ComparisonWindow 按模式计算对比窗口；custom 模式直接使用传入窗口。
func ComparisonWindow(current Window, mode ComparisonMode, custom Window) Window {
	switch mode {
	case ComparePreviousMonth:
		return shiftWindow(current, 0, -1)
	case ComparePreviousYear:
		return shiftWindow(current, -1, 0)
	case CompareCustom:
		return custom
	default:
		return current.Previous()
	}
}

// shiftWindow 按自然年/月平移窗口
func shiftWindow(w Window, years, months int) Window {
	start := time.UnixMilli(w.Start).AddDate(years, months, 0)
	end := time.UnixMilli(w.End).AddDate(years, months, 0)
	return Window{Start: start.UnixMilli(), End: end.UnixMilli()}
}

// LastNDays 截至 end 的最近 n 天窗口
func LastNDays(end time.Time, n int) Window {
	return Window{
		Start: end.AddDate(0, 0, -n).UnixMilli(),
		End:   end.UnixMilli(),
	}
}
