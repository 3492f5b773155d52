package logging

import (
	"io"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format used by the console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender receives every entry a logger decides to emit. A zapcore.Core satisfies it.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated console lines to an io.Writer.
type ConsoleAppender struct {
	io.Writer
	encoder zapcore.Encoder
}

// NewWriterAppender returns a ConsoleAppender writing to writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	encoderCfg := NewZapLoggerConfig().EncoderConfig
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	return ConsoleAppender{writer, zapcore.NewConsoleEncoder(encoderCfg)}
}

// Write encodes the entry and its fields onto the underlying writer.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync syncs the writer when it supports it.
func (appender ConsoleAppender) Sync() error {
	if syncer, ok := appender.Writer.(interface{ Sync() error }); ok {
		//nolint:errcheck
		syncer.Sync()
	}
	return nil
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}

// FileAppender writes uncolored console lines to a size rotated log file.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender appends to path, rotating it once it grows past maxMegabytes and keeping
// maxBackups old files.
func NewFileAppender(path string, maxMegabytes, maxBackups int) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxMegabytes,
		MaxBackups: maxBackups,
	}
	encoderCfg := NewZapLoggerConfig().EncoderConfig
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &FileAppender{
		ConsoleAppender: ConsoleAppender{file, zapcore.NewConsoleEncoder(encoderCfg)},
		file:            file,
	}
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.file.Close()
}
