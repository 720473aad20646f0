package middleware

import (
	"strings"
	"time"

	"github.com/annel0/blockguard/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceHeader определяет заголовок ответа с trace-ID запроса
	TraceHeader = "X-Trace-ID"
	// ContextTraceID — ключ trace-ID в gin.Context
	ContextTraceID = "trace_id"
)

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи
// в компонентный логгер api. Успешные запросы с префиксами quiet (мост хоста,
// по запросу на каждое событие мира) пишутся на уровне Debug.
type RequestLogger struct {
	logger *logging.Logger
	quiet  []string
}

func NewRequestLogger(quiet ...string) *RequestLogger {
	return &RequestLogger{logger: logging.GetAPILogger(), quiet: quiet}
}

func (rl *RequestLogger) isQuiet(path string) bool {
	for _, prefix := range rl.quiet {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.NewString()
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		c.Set(ContextTraceID, traceID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		who := ""
		if user := c.GetString(ContextUsername); user != "" {
			who = " user=" + user
		}

		switch {
		case status >= 500:
			rl.logger.Error("[HTTP] %s %s %d %s ip=%s%s trace=%s", c.Request.Method, path, status, latency, c.ClientIP(), who, traceID)
		case status >= 400 || !rl.isQuiet(path):
			rl.logger.Info("[HTTP] %s %s %d %s ip=%s%s trace=%s", c.Request.Method, path, status, latency, c.ClientIP(), who, traceID)
		default:
			rl.logger.Debug("[HTTP] %s %s %d %s trace=%s", c.Request.Method, path, status, latency, traceID)
		}
	}
}
