package logging

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	errorMarker = regexp.MustCompile(`\[ERROR\](.*)`)
	warnMarker  = regexp.MustCompile(`\[WARN\](.*)`)
)

// ParseMessage looks for an embedded "[ERROR] ..." or "[WARN] ..." marker in a
// response_metadata message and returns the level and the trimmed text after
// it. [ERROR] wins when both are present.
func ParseMessage(msg string) (zerolog.Level, string, bool) {
	if m := errorMarker.FindStringSubmatch(msg); m != nil {
		return zerolog.ErrorLevel, strings.TrimSpace(m[1]), true
	}
	if m := warnMarker.FindStringSubmatch(msg); m != nil {
		return zerolog.WarnLevel, strings.TrimSpace(m[1]), true
	}
	return zerolog.NoLevel, "", false
}

// LogMessages logs every marked message at its level.
func LogMessages(logger zerolog.Logger, messages []string) {
	for _, msg := range messages {
		level, text, ok := ParseMessage(msg)
		if !ok {
			continue
		}
		logger.WithLevel(level).Msg(text)
	}
}
