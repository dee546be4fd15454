package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,=skip, broken ,tenant=points")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "points"}, headers)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x=1")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("OTEL_SDK_DISABLED", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "5000")

	cfg := FromEnv("pointsd", "test")
	require.Equal(t, "pointsd", cfg.ServiceName)
	require.Equal(t, 5*time.Second, cfg.MetricInterval)
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.False(t, cfg.Insecure)
	require.True(t, cfg.Metrics)
	require.True(t, cfg.Traces)
	require.Equal(t, "1", cfg.Headers["x"])

	t.Setenv("OTEL_SDK_DISABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "pointsd-canary")
	cfg = FromEnv("pointsd", "test")
	require.False(t, cfg.Metrics)
	require.False(t, cfg.Traces)
	require.Equal(t, "pointsd-canary", cfg.ServiceName)
}

func TestJoinShutdownStopsInReverse(t *testing.T) {
	var order []string
	stop := func(name string, err error) Shutdown {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	err := joinShutdown([]Shutdown{
		stop("traces", errors.New("trace flush")),
		stop("metrics", errors.New("metric flush")),
	})(context.Background())
	require.Equal(t, []string{"metrics", "traces"}, order)
	require.ErrorContains(t, err, "trace flush")
	require.ErrorContains(t, err, "metric flush")
	require.NoError(t, joinShutdown(nil)(context.Background()))
}

func TestInitWithoutExporters(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := Init(context.Background(), FromEnv("pointsd", ""))
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.ErrorIs(t, err, errServiceName)
}
