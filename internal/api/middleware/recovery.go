package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giveandget/giveandget/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem response. The panic is
// logged with its stack and recorded on the request's span as an exception.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				ctx := r.Context()
				requestID := GetRequestID(ctx)
				route := routeLabel(r)
				stack := debug.Stack()

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}

				span := trace.SpanFromContext(ctx)
				span.RecordError(err, trace.WithAttributes(
					attribute.String("exception.stacktrace", string(stack)),
				))
				span.SetStatus(codes.Error, "panic: "+err.Error())

				event := log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("route", route).
					Err(err).
					Bytes("stack", stack)
				if sc := span.SpanContext(); sc.IsValid() {
					event = event.Str("trace_id", sc.TraceID().String())
				}
				event.Msg("panic recovered")

				problem := models.NewInternalError(requestID, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
