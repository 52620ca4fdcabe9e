// Package logger records shell session events as newline delimited JSON.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// LogEntry is a single timestamped session event. Exactly one of the
// event fields is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	Login      *Login      `json:"login,omitempty"`
	Exec       *Exec       `json:"exec,omitempty"`
	SessionEnd *SessionEnd `json:"session_end,omitempty"`
	Panic      *Panic      `json:"panic,omitempty"`
}

// Login records the start of a session.
type Login struct {
	Username             string   `json:"username"`
	Password             string   `json:"password,omitempty"`
	PublicKey            []byte   `json:"public_key,omitempty"`
	RemoteAddr           string   `json:"remote_addr,omitempty"`
	EnvironmentVariables []string `json:"environment_variables,omitempty"`
	Command              []string `json:"command,omitempty"`
}

// Exec records a command line passed to the interpreter.
type Exec struct {
	Line   string `json:"line"`
	Status int    `json:"status"`
}

// SessionEnd records the session's final exit status.
type SessionEnd struct {
	Status int `json:"status"`
}

// Panic records an interpreter crash so it can be reported upstream.
type Panic struct {
	Context    string `json:"context"`
	Stacktrace string `json:"stacktrace"`
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures session event logs.
type Logger struct {
	Record LogRecorder
}

// NewJSONLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJSONLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

func (l *Logger) record(sessionID string, le *LogEntry) error {
	le.TimestampMicros = time.Now().UnixMicro()
	le.SessionID = sessionID
	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// Sessionless creates a logger with no session ID for process level
// events.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{logger: l}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	logger    *Logger
	sessionID string
}

func (l *SessionLogger) Record(le *LogEntry) error {
	return l.logger.record(l.sessionID, le)
}
