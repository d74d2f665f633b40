package observability

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger shared by the API, the scoring worker
// and the command line tools.
type Logger struct {
	*logrus.Logger
}

func NewLogger(level, format string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
	return &Logger{Logger: base}
}

// Info and Error satisfy the narrow app.Logger interface.
func (l *Logger) Info(msg string) {
	l.Logger.Info(msg)
}

func (l *Logger) Error(msg string) {
	l.Logger.Error(msg)
}

// With returns an entry carrying the given fields.
func (l *Logger) With(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}
