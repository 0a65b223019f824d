package utils

import (
	"math"
	"time"

	"github.com/EventKit/gdalutils/log"

	"go.uber.org/zap"
)

const (
	RETRY_BASE  = 2
	RETRY_COUNT = 1
)

// Testing置位时重试不再等待，失败即返回
var Testing bool

func Retry(fn func() error) error {
	return RetryN(RETRY_BASE, RETRY_COUNT, fn)
}

// 最多执行count次fn，第k次失败后等待base^k秒，全部失败则返回最后一个错误
func RetryN(base, count int, fn func() error) (err error) {
	for attempts := count; attempts > 0; attempts-- {
		if err = fn(); err == nil {
			return
		}
		if Testing {
			return
		}
		delay := math.Pow(float64(base), float64(count-attempts+1))
		log.Info("retrying after failed attempt",
			zap.Int("remaining", attempts-1), zap.Float64("delay", delay), zap.Error(err))
		time.Sleep(time.Duration(delay * float64(time.Second)))
	}
	return
}
