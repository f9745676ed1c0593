package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type callStat struct {
	requests int64
	bytes    int64
}

var (
	ordersSkipped  int64
	rowsWritten    int64
	tablesWritten  int64
	uploadsTotal   int64
	uploadBytes    int64
	apiCalls       sync.Map // map[string]*callStat, keyed by info request type
	warnCounts     sync.Map // map[string]*int64, keyed by component
	errorCounts    sync.Map // map[string]*int64, keyed by component
)

func recordWarn(component string) {
	v, _ := warnCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordError(component string) {
	v, _ := errorCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// IncrementFetch records one completed info API call and its response size.
func IncrementFetch(call string, size int) {
	v, _ := apiCalls.LoadOrStore(call, &callStat{})
	cs := v.(*callStat)
	atomic.AddInt64(&cs.requests, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// IncrementSkippedOrder records an order excluded for a missing mid price.
func IncrementSkippedOrder() {
	atomic.AddInt64(&ordersSkipped, 1)
}

// IncrementRowsWritten records rows flushed into a finished report table.
func IncrementRowsWritten(table string, rows int) {
	atomic.AddInt64(&rowsWritten, int64(rows))
	atomic.AddInt64(&tablesWritten, 1)
}

// IncrementUpload records one report file mirrored to object storage.
func IncrementUpload(size int) {
	atomic.AddInt64(&uploadsTotal, 1)
	atomic.AddInt64(&uploadBytes, int64(size))
}

// StartReport begins periodic logging of run counters and runtime statistics
// until the context is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	callData := map[string]map[string]int64{}
	apiCalls.Range(func(k, v any) bool {
		cs := v.(*callStat)
		callData[k.(string)] = map[string]int64{
			"requests": atomic.LoadInt64(&cs.requests),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	warnData := map[string]int64{}
	warnCounts.Range(func(k, v any) bool {
		warnData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	errorData := map[string]int64{}
	errorCounts.Range(func(k, v any) bool {
		errorData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	fields := Fields{
		"orders_skipped": atomic.LoadInt64(&ordersSkipped),
		"rows_written":   atomic.LoadInt64(&rowsWritten),
		"tables_written": atomic.LoadInt64(&tablesWritten),
		"uploads":        atomic.LoadInt64(&uploadsTotal),
		"upload_bytes":   atomic.LoadInt64(&uploadBytes),
		"api_calls":      callData,
		"warns":          warnData,
		"errors":         errorData,
		"goroutines":     runtime.NumGoroutine(),
		"heap_mb":        int64(memStats.HeapAlloc) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("OrdersSkipped"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ordersSkipped)))},
		{MetricName: aws.String("RowsWritten"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&rowsWritten)))},
		{MetricName: aws.String("TablesWritten"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tablesWritten)))},
		{MetricName: aws.String("Uploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&uploadsTotal)))},
		{MetricName: aws.String("HeapMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.HeapAlloc) / 1024 / 1024)},
	}

	for call, stats := range callData {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("APIRequests"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("Call"), Value: aws.String(call)}},
			Value:      aws.Float64(float64(stats["requests"])),
		})
	}

	publishMetrics(ctx, data)
}
