package logger

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"
)

// logEntry is a single formatted log line together with the level it was
// logged at, ready to be dispatched to the backend writers.
type logEntry struct {
	log   []byte
	level Level
}

// Logger is a subsystem logger writing to a Backend. All messages are
// prefixed with a timestamp, the level tag and the subsystem tag.
type Logger struct {
	lvl       Level // atomic
	tag       string
	b         *Backend
	writeChan chan logEntry
}

// Trace formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.write(LevelTrace, args...)
}

// Tracef formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.writef(LevelTrace, format, args...)
}

// Debug formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.write(LevelDebug, args...)
}

// Debugf formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.writef(LevelDebug, format, args...)
}

// Info formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.write(LevelInfo, args...)
}

// Infof formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.writef(LevelInfo, format, args...)
}

// Warn formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.write(LevelWarn, args...)
}

// Warnf formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.writef(LevelWarn, format, args...)
}

// Error formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.write(LevelError, args...)
}

// Errorf formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.writef(LevelError, format, args...)
}

// Critical formats message using the default formats for its operands,
// prepends the prefix as necessary, and writes to log with LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.write(LevelCritical, args...)
}

// Criticalf formats message according to format specifier, prepends the
// prefix as necessary, and writes to log with LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.writef(LevelCritical, format, args...)
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.b
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32((*uint32)(&l.lvl)))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(logLevel Level) {
	atomic.StoreUint32((*uint32)(&l.lvl), uint32(logLevel))
}

func (l *Logger) write(logLevel Level, args ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.print(logLevel, fmt.Sprint(args...))
}

func (l *Logger) writef(logLevel Level, format string, args ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.print(logLevel, fmt.Sprintf(format, args...))
}

// print formats the message header and hands it to the backend goroutine.
// If the backend is not running yet the entry is written to stderr so that
// early startup errors are never lost.
func (l *Logger) print(logLevel Level, message string) {
	entry := logEntry{
		log:   formatHeader(l.b.flag, logLevel, l.tag, message),
		level: logLevel,
	}

	if !l.b.IsRunning() {
		_, _ = os.Stderr.Write(entry.log)
		return
	}
	l.writeChan <- entry
}

// formatHeader produces the full log line:
// 2006-01-02 15:04:05.000 [INF] TAG: message
func formatHeader(flag uint32, logLevel Level, tag, message string) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, normalLogSize))

	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	buf.WriteString(" [")
	buf.WriteString(logLevel.String())
	buf.WriteString("] ")
	buf.WriteString(tag)

	if flag&(LogFlagLongFile|LogFlagShortFile) != 0 {
		file, line := callsite(flag)
		fmt.Fprintf(buf, " %s:%d", file, line)
	}

	buf.WriteString(": ")
	buf.WriteString(message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// callsite returns the file name and line number of the logging callsite.
func callsite(flag uint32) (string, int) {
	// The call stack here is: callsite, formatHeader, print, write(f),
	// the exported logging method, and finally the caller.
	_, file, line, ok := runtime.Caller(5)
	if !ok {
		return "???", 0
	}
	if flag&LogFlagShortFile != 0 {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if os.IsPathSeparator(file[i]) {
				short = file[i+1:]
				break
			}
		}
		file = short
	}
	return file, line
}
