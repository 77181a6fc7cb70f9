package logging

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RestyLogger routes resty's internal logging to zerolog. It satisfies
// resty.Logger.
type RestyLogger struct {
	logger zerolog.Logger
}

// NewRestyLogger wraps logger for use with resty.Client.SetLogger.
func NewRestyLogger(logger zerolog.Logger) *RestyLogger {
	return &RestyLogger{logger: logger}
}

func (l *RestyLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msg(trim(fmt.Sprintf(format, v...)))
}

func (l *RestyLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msg(trim(fmt.Sprintf(format, v...)))
}

func (l *RestyLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msg(trim(fmt.Sprintf(format, v...)))
}

func trim(s string) string {
	return strings.TrimRight(s, "\n ")
}
