package list

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	ListPoolStatsName = "xboot/xpool"
)

var (
	slotFromAppend = metric.WithAttributeSet(attribute.NewSet(attribute.String("xpool.slot.source", "append")))
	slotFromReuse  = metric.WithAttributeSet(attribute.NewSet(attribute.String("xpool.slot.source", "reuse")))
)

type listPoolStats struct {
	capacityCounter atomic.Int64
	slotAllocated   metric.Int64Counter
	slotFreed       metric.Int64Counter
	slotLive        metric.Int64UpDownCounter
	capacity        metric.Int64ObservableGauge
	registration    metric.Registration
}

func (stats *listPoolStats) RecordSlotAllocated(reused bool) {
	if stats == nil {
		return
	}
	if reused {
		stats.slotAllocated.Add(context.Background(), 1, slotFromReuse)
	} else {
		stats.slotAllocated.Add(context.Background(), 1, slotFromAppend)
	}
	stats.slotLive.Add(context.Background(), 1)
}

func (stats *listPoolStats) RecordSlotFreed(count int64) {
	if stats == nil || count == 0 {
		return
	}
	stats.slotFreed.Add(context.Background(), count)
	stats.slotLive.Add(context.Background(), -count)
}

func (stats *listPoolStats) RecordCapacity(capacity int) {
	if stats == nil {
		return
	}
	stats.capacityCounter.Store(int64(capacity))
}

// Close unregisters the capacity gauge callback.
func (stats *listPoolStats) Close() error {
	if stats == nil || stats.registration == nil {
		return nil
	}
	return stats.registration.Unregister()
}

func newListPoolStats(name string) *listPoolStats {
	meterName := fmt.Sprintf("%s/%s", ListPoolStatsName, name)
	meter := otel.Meter(meterName)
	stats := &listPoolStats{
		slotAllocated: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xpool.slot.allocated.count",
			metric.WithDescription("The number of slots allocated by the list pool."),
		)),
		slotFreed: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xpool.slot.freed.count",
			metric.WithDescription("The number of slots released into the free list."),
		)),
		slotLive: lo.Must[metric.Int64UpDownCounter](meter.Int64UpDownCounter(
			"xpool.slot.live",
			metric.WithDescription("The number of slots held by lists."),
		)),
		capacity: lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
			"xpool.capacity",
			metric.WithDescription("The slot capacity of the list pool backing storage."),
		)),
	}
	stats.registration = lo.Must[metric.Registration](meter.RegisterCallback(
		func(ctx context.Context, ob metric.Observer) error {
			ob.ObserveInt64(stats.capacity, stats.capacityCounter.Load())
			return nil
		},
		stats.capacity,
	))
	return stats
}
