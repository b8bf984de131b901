package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dev-emon1/shoppers-link/pkg/database"

var (
	redisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Duration of Redis commands in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"command"},
	)

	redisCommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_command_errors_total",
			Help: "Total number of failed Redis commands (cache misses excluded)",
		},
		[]string{"command"},
	)
)

// CommandHook is a redis.Hook that traces every command, records its latency
// and logs commands slower than a threshold.
type CommandHook struct {
	tracer        trace.Tracer
	slowThreshold time.Duration
	logger        *slog.Logger
}

var _ redis.Hook = (*CommandHook)(nil)

// NewCommandHook creates a hook. A zero threshold disables slow logging.
func NewCommandHook(slowThreshold time.Duration, logger *slog.Logger) *CommandHook {
	return &CommandHook{
		tracer:        otel.Tracer(tracerName),
		slowThreshold: slowThreshold,
		logger:        logger,
	}
}

func (h *CommandHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *CommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()
		ctx, end := h.start(ctx, name, 1)
		err := next(ctx, cmd)
		end(name, err)
		return err
	}
}

func (h *CommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, end := h.start(ctx, "pipeline", len(cmds))
		err := next(ctx, cmds)
		end("pipeline", err)
		return err
	}
}

func (h *CommandHook) start(ctx context.Context, name string, n int) (context.Context, func(string, error)) {
	begin := time.Now()
	ctx, span := h.tracer.Start(ctx, "redis."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", name),
			attribute.Int("db.redis.num_cmd", n),
		),
	)

	return ctx, func(label string, err error) {
		elapsed := time.Since(begin)
		redisCommandDuration.WithLabelValues(label).Observe(elapsed.Seconds())

		if err != nil && !errors.Is(err, redis.Nil) {
			redisCommandErrors.WithLabelValues(label).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if h.slowThreshold > 0 && elapsed > h.slowThreshold && h.logger != nil {
			h.logger.WarnContext(ctx, "slow redis command",
				slog.String("command", label),
				slog.Duration("duration", elapsed),
			)
		}
	}
}
