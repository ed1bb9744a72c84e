package main

//
// Logging functionality
//

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

// logStartTime is the time when we started logging
var logStartTime = time.Now()

// levelColors maps log levels to colors.
var levelColors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// levelStrings maps log levels to symbols.
var levelStrings = [...]string{
	log.DebugLevel: "•",
	log.InfoLevel:  "•",
	log.WarnLevel:  "•",
	log.ErrorLevel: "⨯",
	log.FatalLevel: "⨯",
}

// logHandler implements the log handler required by github.com/apex/log
type logHandler struct {
	mu     sync.Mutex
	writer io.Writer
}

var _ log.Handler = &logHandler{}

// newLogHandler creates a handler writing to w, which is made
// colorable when it is a file.
func newLogHandler(w io.Writer) *logHandler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &logHandler{writer: w}
}

// HandleLog implements log.Handler
func (h *logHandler) HandleLog(e *log.Entry) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	level := "?"
	c := levelColors[log.InfoLevel]
	if int(e.Level) >= 0 && int(e.Level) < len(levelStrings) {
		level, c = levelStrings[e.Level], levelColors[e.Level]
	}
	s := c.Sprintf("[%14.6f] %s %s", time.Since(logStartTime).Seconds(), level, e.Message)
	for _, name := range e.Fields.Names() {
		s += fmt.Sprintf(" %s=%v", c.Sprint(name), e.Fields.Get(name))
	}
	_, err = fmt.Fprintln(h.writer, s)
	return
}
