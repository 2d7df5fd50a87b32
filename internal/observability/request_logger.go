package observability

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func NewStructuredLogger(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&structuredLogger{logger})
}

type structuredLogger struct {
	Logger *logrus.Logger
}

func (l *structuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := logrus.Fields{
		"component":   "api",
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": remoteIP(r),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["request_id"] = reqID
	}

	entry := &structuredLoggerEntry{Logger: l.Logger.WithFields(fields)}
	entry.Logger.Debug("request started")
	return entry
}

type structuredLoggerEntry struct {
	Logger logrus.FieldLogger
}

func (l *structuredLoggerEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	l.Logger = l.Logger.WithFields(logrus.Fields{
		"status":   status,
		"bytes":    bytes,
		"duration": elapsed.Nanoseconds(),
	})

	l.Logger.Info("request completed")
}

func (l *structuredLoggerEntry) Panic(v interface{}, stack []byte) {
	l.Logger.WithFields(logrus.Fields{
		"stack": string(stack),
		"panic": fmt.Sprintf("%+v", v),
	}).Error("unhandled request panic")
}

// GetLogEntry returns the request's logger, or the standard logger outside
// the request logging middleware.
func GetLogEntry(r *http.Request) logrus.FieldLogger {
	entry, _ := middleware.GetLogEntry(r).(*structuredLoggerEntry)
	if entry == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return entry.Logger
}

func LogEntrySetField(r *http.Request, key string, value interface{}) logrus.FieldLogger {
	if entry, ok := middleware.GetLogEntry(r).(*structuredLoggerEntry); ok {
		entry.Logger = entry.Logger.WithField(key, value)
		return entry.Logger
	}
	return GetLogEntry(r)
}

// remoteIP strips the port that RemoteAddr carries unless RealIP already
// replaced it.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
