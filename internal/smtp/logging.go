package smtp

import (
	"fmt"
	"log/slog"
	"strings"
)

// errorLog routes go-smtp's internal error reports into slog.
type errorLog struct {
	logger *slog.Logger
}

func (l errorLog) Printf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l errorLog) Println(v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintln(v...)))
}
