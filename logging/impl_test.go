package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func newBufferLogger(name string, level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := NewBlankLogger(name)
	logger.SetLevel(level)
	logger.AddAppender(NewWriterAppender(buf))
	return logger, buf
}

func TestConsoleAppender(t *testing.T) {
	logger, buf := newBufferLogger("calib", INFO)

	logger.Debug("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Infof("accepted %d/%d", 3, 13)
	line, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	parts := strings.Split(strings.TrimSuffix(line, "\n"), "\t")
	test.That(t, len(parts), test.ShouldBeGreaterThanOrEqualTo, 4)
	test.That(t, parts[2], test.ShouldEqual, "calib")
	test.That(t, parts[len(parts)-1], test.ShouldEqual, "accepted 3/13")

	logger.Warnw("skipping frame", "width", 640, "reason", "too small")
	line, err = buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldContainSubstring, "skipping frame")
	test.That(t, line, test.ShouldContainSubstring, `"width"`)
	test.That(t, line, test.ShouldContainSubstring, `"too small"`)
}

func TestSublogger(t *testing.T) {
	logger, buf := newBufferLogger("session", DEBUG)
	left := logger.Sublogger("left")

	left.Debugf("count=%d", 1)
	test.That(t, buf.String(), test.ShouldContainSubstring, "session.left")

	// Sublogger levels are independent once created.
	left.SetLevel(ERROR)
	buf.Reset()
	left.Info("dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	logger.Info("kept")
	test.That(t, buf.String(), test.ShouldContainSubstring, "kept")
}

func TestUnpairedKey(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("odd", "lonely")

	entries := logs.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["lonely"], test.ShouldNotBeNil)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Sublogger("right").Errorw("estimation failed", "views", 3)

	test.That(t, logs.FilterMessage("estimation failed").Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "right")
	test.That(t, entry.ContextMap()["views"], test.ShouldEqual, int64(3))
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loud")
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.log")
	appender := NewFileAppender(path, 1, 1)
	logger := NewBlankLogger("calib")
	logger.AddAppender(appender)

	logger.Errorw("cannot read frame", "index", 7)
	test.That(t, appender.Close(), test.ShouldBeNil)

	content, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	line := string(content)
	test.That(t, line, test.ShouldContainSubstring, "ERROR")
	test.That(t, line, test.ShouldContainSubstring, "cannot read frame")
	test.That(t, line, test.ShouldContainSubstring, `"index": 7`)
	test.That(t, line, test.ShouldNotContainSubstring, "\x1b[")
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("stereocalib", WARN, &buf)
	logger.Info("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	logger.Warn("shown")
	test.That(t, buf.String(), test.ShouldContainSubstring, "shown")
}
