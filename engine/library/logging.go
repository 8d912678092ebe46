package library

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/mborders/logmatic"
)

var logLevel atomic.Int32

func init() {
	logLevel.Store(4)
}

// SetLogLevel sets the most verbose level LogCLI will print, using LogCLI's numbering.
func SetLogLevel(level int) {
	logLevel.Store(int32(level))
}

func applyThreshold(l *logmatic.Logger) {
	switch logLevel.Load() {
	case 5:
		l.SetLevel(logmatic.TRACE)
	case 4:
		l.SetLevel(logmatic.INFO)
	case 3:
		l.SetLevel(logmatic.DEBUG)
	case 2:
		l.SetLevel(logmatic.WARN)
	default:
		l.SetLevel(logmatic.ERROR)
	}
}

// Logs to the terminal. Level options are: 0 fatal error (stack dump), 1 serious error (stack dump), 2 warning, 3 debug, 4 info, 5 trace.
// Level 0 does not exit, callers that hit a fatal condition return an error wrapping ErrFatal and let main decide.
func LogCLI(message interface{}, level int) {
	l := logmatic.NewLogger()
	applyThreshold(l)
	l.ExitOnFatal = false
	message = fmt.Sprint(message)
	switch level {
	case 5:
		l.Trace("%v", message)
	case 4:
		l.Info("%v", message)
	case 3:
		l.Debug("%v", message)
	case 2:
		l.Warn("%v", message)
	case 1:
		debug.PrintStack()
		l.Error("%v", message)
	case 0:
		debug.PrintStack()
		l.Error("%v", message)
	}
}
