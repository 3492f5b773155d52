package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through tb.Log so that each line is
// associated with the test that produced it, even when tests run in parallel. Lines are
// written in local time.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

// Write logs one tab separated line: time, level, logger name, caller, message and the
// fields as a JSON object in their original order.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	columns := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		columns = append(columns, callerToString(&entry.Caller))
	}
	columns = append(columns, entry.Message)

	var err error
	if len(fields) > 0 {
		var encoded string
		encoded, err = fieldsJSON(fields)
		if err == nil {
			columns = append(columns, encoded)
		}
	}
	tapp.tb.Log(strings.Join(columns, "\t"))
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}

// fieldsJSON encodes fields alone by handing zap's JSON encoder an empty entry.
func fieldsJSON(fields []zapcore.Field) (string, error) {
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := encoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	defer buf.Free()
	return buf.String(), nil
}
