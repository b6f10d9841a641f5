package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger carries diagnostics. Build output the driver reads goes through
// BuildLogger instead.
var Logger = logrus.New()

func Init(level string, format string) error {
	Logger.Out = os.Stderr

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	Logger.SetLevel(lvl)

	switch format {
	case "json":
		Logger.Formatter = &logrus.JSONFormatter{}
	case "", "text":
		Logger.Formatter = &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "02-01-2006 15:04:05",
		}
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	return nil
}

const (
	topicPrefix  = "-----> "
	detailPrefix = "       "
	errorPrefix  = " !     "
)

// BuildLogger writes buildpack-style output:
//
//	-----> Installing WildFly 16.0.0.Final
//	       ROOT.war
type BuildLogger struct {
	buildID string
	out     io.Writer
	lines   []string
	mu      sync.Mutex
	onLine  func(buildID, line string)
}

func NewBuildLogger(buildID string, out io.Writer, onLine func(buildID, line string)) *BuildLogger {
	if out == nil {
		out = io.Discard
	}
	return &BuildLogger{
		buildID: buildID,
		out:     out,
		onLine:  onLine,
	}
}

// Topic announces a new phase of the build.
func (l *BuildLogger) Topic(format string, args ...any) {
	l.emit(topicPrefix, format, args...)
}

// Info prints an indented detail line under the current topic.
func (l *BuildLogger) Info(format string, args ...any) {
	l.emit(detailPrefix, format, args...)
}

func (l *BuildLogger) Error(format string, args ...any) {
	l.emit(errorPrefix, format, args...)
}

// Plain prints a line without any prefix.
func (l *BuildLogger) Plain(format string, args ...any) {
	l.emit("", format, args...)
}

func (l *BuildLogger) emit(prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	for _, line := range strings.Split(msg, "\n") {
		full := prefix + line

		l.mu.Lock()
		l.lines = append(l.lines, full)
		fmt.Fprintln(l.out, full)
		l.mu.Unlock()

		Logger.WithField("build_id", l.buildID).Debug(line)

		if l.onLine != nil {
			l.onLine(l.buildID, full)
		}
	}
}

func (l *BuildLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]string, len(l.lines))
	copy(cp, l.lines)
	return cp
}

// Output returns everything logged so far as one string.
func (l *BuildLogger) Output() string {
	return strings.Join(l.Lines(), "\n")
}
