// Package web 提供两个服务共用的 HTTP 中间件和 JSON 响应工具。
package web

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracing 从请求头中恢复上游的链路上下文，并为每个请求开启一个 server span。
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName + "/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				))
			defer span.End()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

// AccessLog 把请求上下文绑定一个带 request_id 的 logger，并在请求结束时输出一条访问日志。
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lg := zlog.Logger.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			lg = lg.With().Str("trace_id", sc.TraceID().String()).Logger()
		}
		ctx := lg.WithContext(r.Context())

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = lg.Error()
		case status >= http.StatusBadRequest:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}
