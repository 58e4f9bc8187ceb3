package timeutil

import "time"

func Now() time.Time {
	return time.Now().UTC()
}

func NowUnix() int64 {
	return time.Now().Unix()
}

func DaysAgoUnix(days int) int64 {
	return time.Now().AddDate(0, 0, -days).Unix()
}
