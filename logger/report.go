package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

var (
	errorsTicker     int64
	errorsDepth      int64
	warnsTicker      int64
	warnsDepth       int64
	snapshotsFetched int64
	broadcastSends   int64
	broadcastDrops   int64
	subscriberAdds   int64
	subscriberGone   int64
)

func recordWarn(component string) {
	if strings.Contains(component, "depth") {
		atomic.AddInt64(&warnsDepth, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "ticker") {
		atomic.AddInt64(&warnsTicker, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "depth") {
		atomic.AddInt64(&errorsDepth, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "ticker") {
		atomic.AddInt64(&errorsTicker, 1)
	}
}

// IncrementSnapshotFetched counts one normalized snapshot produced by the reader.
func IncrementSnapshotFetched() {
	atomic.AddInt64(&snapshotsFetched, 1)
}

// IncrementBroadcastSend counts one successful delivery to a subscriber.
func IncrementBroadcastSend() {
	atomic.AddInt64(&broadcastSends, 1)
}

// IncrementBroadcastDrop counts one subscriber pruned on delivery failure.
func IncrementBroadcastDrop() {
	atomic.AddInt64(&broadcastDrops, 1)
}

// IncrementSubscriberAdd counts one subscriber registration.
func IncrementSubscriberAdd() {
	atomic.AddInt64(&subscriberAdds, 1)
}

// IncrementSubscriberGone counts one subscriber removal.
func IncrementSubscriberGone() {
	atomic.AddInt64(&subscriberGone, 1)
}

// StartReport begins periodic logging of relay runtime statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	fields := Fields{
		"errors_ticker":     atomic.LoadInt64(&errorsTicker),
		"errors_depth":      atomic.LoadInt64(&errorsDepth),
		"warns_ticker":      atomic.LoadInt64(&warnsTicker),
		"warns_depth":       atomic.LoadInt64(&warnsDepth),
		"snapshots_fetched": atomic.LoadInt64(&snapshotsFetched),
		"broadcast_sends":   atomic.LoadInt64(&broadcastSends),
		"broadcast_drops":   atomic.LoadInt64(&broadcastDrops),
		"subscriber_adds":   atomic.LoadInt64(&subscriberAdds),
		"subscriber_gone":   atomic.LoadInt64(&subscriberGone),
		"goroutines":        runtime.NumGoroutine(),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")
}
