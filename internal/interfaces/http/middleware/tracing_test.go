package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs a recording tracer provider for the test
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	return sr
}

func tracedRouter(cfg TracingConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Tracing(cfg), SpanErrorMarker())
	router.GET("/api/v1/items/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.GET("/bad", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{})
	})
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("upstream exploded"))
		c.JSON(http.StatusBadGateway, gin.H{})
	})
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func serve(router *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func attrValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.Emit(), true
		}
	}
	return "", false
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	w := serve(tracedRouter(TracingConfig{Enabled: false}), "/api/v1/items/1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	sr := setupTestTracer(t)

	w := serve(tracedRouter(DefaultTracingConfig()), "/api/v1/items/42", map[string]string{
		RequestIDHeader: "req-trace-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/items/:id")

	id, ok := attrValue(spans[0].Attributes(), "request_id")
	assert.True(t, ok)
	assert.Equal(t, "req-trace-1", id)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracing_SkipsHealthChecks(t *testing.T) {
	sr := setupTestTracer(t)

	w := serve(tracedRouter(DefaultTracingConfig()), "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	sr := setupTestTracer(t)

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	serve(tracedRouter(DefaultTracingConfig()), "/api/v1/items/1", map[string]string{
		"traceparent": traceparent,
	})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
}

func TestSpanErrorMarker(t *testing.T) {
	t.Run("client errors leave status unset", func(t *testing.T) {
		sr := setupTestTracer(t)

		serve(tracedRouter(DefaultTracingConfig()), "/bad", nil)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("server errors mark the span and record the error", func(t *testing.T) {
		sr := setupTestTracer(t)

		serve(tracedRouter(DefaultTracingConfig()), "/fail", nil)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)

		var recorded bool
		for _, ev := range spans[0].Events() {
			if ev.Name == "exception" {
				recorded = true
			}
		}
		assert.True(t, recorded)
	})

	t.Run("no span is a no-op", func(t *testing.T) {
		router := gin.New()
		router.Use(SpanErrorMarker())
		router.GET("/fail", func(c *gin.Context) {
			c.Status(http.StatusInternalServerError)
		})

		w := serve(router, "/fail", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	require.NotNil(t, cfg.Filter)
	assert.False(t, cfg.Filter(httptest.NewRequest(http.MethodGet, "/health/ready", nil)))
	assert.True(t, cfg.Filter(httptest.NewRequest(http.MethodGet, "/api/v1/sourcing/search", nil)))
}
