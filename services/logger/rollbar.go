package logsvc

import (
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

// RollbarLogger reports entries to Rollbar and echoes them on std.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// Enable switches reporting to Rollbar. Entries are echoed on std either way.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log(rollbar.DEBUG, msg, args)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

// Fatal flushes pending reports before exiting.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	rollbar.Log(level, l.prepare(msg, args)...)

	l.std.Printf("%s: %s", strings.ToUpper(level), msg)
	for _, arg := range args {
		l.std.Printf("\t%+v", arg)
	}
}

// prepare builds the Rollbar arguments: msg first, then args as given except for
// a collab.Connection, which becomes the reported person plus its room extras.
// Only the first connection is reported.
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	out := append(make([]interface{}, 0, len(args)+1), msg)
	var person *collab.Connection
	for _, arg := range args {
		conn, ok := arg.(collab.Connection)
		switch {
		case !ok:
			out = append(out, arg)
		case person == nil:
			person = &conn
			out = append(out, connectionExtras(conn))
		}
	}

	if person == nil {
		rollbar.ClearPerson()
	} else {
		rollbar.SetPerson(person.ConnectionID, person.Username, "")
	}
	return out
}

func connectionExtras(conn collab.Connection) map[string]interface{} {
	return map[string]interface{}{"roomId": conn.RoomID, "status": conn.Status}
}
