package repository

import (
	"fmt"
	"time"
)

// DayRange 把 YYYY-MM-DD 解析为当天的毫秒时间戳闭区间 [start, end]。
// 活动与处方的 performed_at/prescribed_at 都按本地时区落库，
// 所以这里同样用本地时区对齐日界，保证按日过滤时两端一致。
func DayRange(date string) (startMs int64, endMs int64, err error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	next := day.AddDate(0, 0, 1)
	return day.UnixMilli(), next.UnixMilli() - 1, nil
}
