package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// MonitorChannel returns the Redis PubSub channel carrying live proctoring events.
func (r *CacheKeyStruct) MonitorChannel() string {
	return "proctor:monitor"
}

// DailyViolationCounterKey returns the key of the per-day violation counter for a kind.
func (r *CacheKeyStruct) DailyViolationCounterKey(day string, kind string) string {
	return fmt.Sprintf("proctor:%s:violations:%s", day, kind)
}

// DailySubmissionCounterKey returns the key of the per-day submission counter for an outcome.
func (r *CacheKeyStruct) DailySubmissionCounterKey(day string, outcome string) string {
	return fmt.Sprintf("proctor:%s:submissions:%s", day, outcome)
}

var CacheKey = NewCacheKeyStruct()
