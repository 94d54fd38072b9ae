package utils

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Logger is what the HTTP layer logs through. Services take *slog.Logger
// directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger

	// LogRequest records one finished request. The level follows the status.
	LogRequest(method, path string, statusCode int, duration string, args ...any)
	LogError(err error, msg string, args ...any)
}

const contextLoggerKey = "logger"

type slogLogger struct {
	*slog.Logger
}

// NewSlogLogger wraps logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return slogLogger{Logger: logger}
}

// NewSlog builds the process wide slog.Logger: JSON records in production,
// colourised text everywhere else.
func NewSlog(environment string, out io.Writer) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return slog.New(NewColorHandler(out, slog.LevelDebug))
}

func (l slogLogger) With(args ...any) Logger {
	return slogLogger{Logger: l.Logger.With(args...)}
}

func (l slogLogger) LogRequest(method, path string, statusCode int, duration string, args ...any) {
	attrs := append([]any{
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration", duration,
	}, args...)
	l.Log(context.Background(), statusLevel(statusCode), "HTTP Request", attrs...)
}

func (l slogLogger) LogError(err error, msg string, args ...any) {
	l.Logger.Error(msg, append([]any{"error", err}, args...)...)
}

func statusLevel(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelError
	case code >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LoggerMiddleware replaces gin's access log with one structured record per
// request.
func LoggerMiddleware(logger Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		logger.LogRequest(p.Method, p.Path, p.StatusCode, p.Latency.String(),
			"client_ip", p.ClientIP,
			"user_agent", p.Request.UserAgent())
		return ""
	})
}

// ContextLogger stores a logger carrying the request id, method and path in
// the gin context. Install it after the request id middleware.
func ContextLogger(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextLoggerKey, logger.With(requestAttrs(c)...))
		c.Next()
	}
}

// LoggerFromContext returns the logger ContextLogger stored, or fallback
// tagged with the same request attributes when none was stored.
func LoggerFromContext(c *gin.Context, fallback Logger) Logger {
	if v, ok := c.Get(contextLoggerKey); ok {
		if l, ok := v.(Logger); ok {
			return l
		}
	}
	return fallback.With(requestAttrs(c)...)
}

func requestAttrs(c *gin.Context) []any {
	return []any{
		"request_id", c.GetHeader("X-Request-ID"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
}
