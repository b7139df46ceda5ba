package table

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/bulkdb/log"
)

type ObservableHandleOptions struct {
	// Name 组件名称标识，用于所有观测维度
	// - Metrics: 作为指标名前缀
	// - Logging: 作为 component 字段值
	// - Tracing: 作为 span 的 component 属性
	Name string `cfg:"name" def:"table"`

	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否启用日志记录
	EnableLogging bool `cfg:"enableLogging" def:"true"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Logger 日志记录器，nil 时使用 log.Default()
	Logger log.Logger
}

// observableMetrics 封装 prometheus 指标
type observableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	flushRows         prometheus.Histogram
}

func newObservableMetrics(name string) *observableMetrics {
	metrics := &observableMetrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of table operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of table operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		flushRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    name + "_flush_rows",
				Help:    "Number of rows flushed per bulk insert",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
	}

	prometheus.MustRegister(
		metrics.operationCounter,
		metrics.operationDuration,
		metrics.flushRows,
	)

	return metrics
}

// ObservableHandle 装饰器，为表句柄添加观测能力，行为本身原样透传
type ObservableHandle[T any] struct {
	handle *Handle[T]

	logger  log.Logger
	metrics *observableMetrics
	tracer  trace.Tracer
	name    string
}

func NewObservableHandleWithOptions[T any](handle *Handle[T], options *ObservableHandleOptions) (*ObservableHandle[T], error) {
	if handle == nil {
		return nil, errors.New("handle is nil")
	}
	if options == nil {
		options = &ObservableHandleOptions{
			EnableMetrics: true,
			EnableLogging: true,
		}
	}
	if options.Name == "" {
		options.Name = "table"
	}

	obs := &ObservableHandle[T]{
		handle: handle,
		name:   options.Name,
	}

	if options.EnableLogging {
		logger := options.Logger
		if logger == nil {
			logger = log.Default()
		}
		obs.logger = logger.With("component", options.Name)
	}

	if options.EnableMetrics {
		obs.metrics = newObservableMetrics(options.Name)
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("table.%s", options.Name))
	}

	return obs, nil
}

// Handle 返回被包装的原始句柄
func (o *ObservableHandle[T]) Handle() *Handle[T] {
	return o.handle
}

// Insert 透传到底层句柄，返回带观测的延迟执行对象
func (o *ObservableHandle[T]) Insert(rows ...*T) *ObservableBulk[T] {
	bulk := o.handle.Insert(rows...)
	if bulk == nil {
		return nil
	}
	return &ObservableBulk[T]{bulk: bulk, obs: o}
}

func (o *ObservableHandle[T]) Create(ctx context.Context) error {
	return o.observe(ctx, "create", func(ctx context.Context) error {
		return o.handle.Create(ctx)
	})
}

func (o *ObservableHandle[T]) Drop(ctx context.Context) error {
	return o.observe(ctx, "drop", func(ctx context.Context) error {
		return o.handle.Drop(ctx)
	})
}

func (o *ObservableHandle[T]) UseDB(ctx context.Context, name string) error {
	return o.observe(ctx, "usedb", func(ctx context.Context) error {
		return o.handle.UseDB(ctx, name)
	})
}

// ObservableBulk 带观测的延迟批量写入
type ObservableBulk[T any] struct {
	bulk *Bulk[T]
	obs  *ObservableHandle[T]
}

func (b *ObservableBulk[T]) Exec(ctx context.Context) (*Result, error) {
	var result *Result
	err := b.obs.observe(ctx, "exec", func(ctx context.Context) error {
		var err error
		result, err = b.bulk.Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if b.obs.metrics != nil {
		b.obs.metrics.flushRows.Observe(float64(result.RowsAffected))
	}
	return result, nil
}

// observe 统一的操作观测逻辑
func (o *ObservableHandle[T]) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, operation, trace.WithAttributes(
			attribute.String("component", o.name),
			attribute.String("table", o.handle.Schema().Name),
		))
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if o.metrics != nil {
		o.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		o.metrics.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if o.logger != nil {
		if err != nil {
			o.logger.ErrorContext(ctx, "table operation failed",
				"operation", operation, "table", o.handle.Schema().Name,
				"elapsed", elapsed, "error", err)
		} else {
			o.logger.DebugContext(ctx, "table operation",
				"operation", operation, "table", o.handle.Schema().Name,
				"elapsed", elapsed)
		}
	}

	return err
}
