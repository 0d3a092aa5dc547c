package main

import "time"

const (
	viewCreateRateLimitRequests = 30
	viewCreateRateLimitWindow   = time.Minute
)

type rateBucket struct {
	start time.Time
	count int
}

func (a *App) checkRateLimit(key string, maxRequests int, window time.Duration, now time.Time) bool {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()

	bucket, ok := a.rateBuckets[key]
	if !ok || now.Sub(bucket.start) >= window {
		a.rateBuckets[key] = rateBucket{start: now, count: 1}
		return true
	}
	bucket.count++
	a.rateBuckets[key] = bucket
	return bucket.count <= maxRequests
}

func (a *App) pruneRateLimiterState(now time.Time) {
	a.rateLimiterMu.Lock()
	for key, bucket := range a.rateBuckets {
		if now.Sub(bucket.start) >= viewCreateRateLimitWindow {
			delete(a.rateBuckets, key)
		}
	}
	a.rateLimiterMu.Unlock()
}
