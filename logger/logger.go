package logger

import (
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	entry  *logrus.Entry
	active bool
}

// FSLogger reports warnings and errors on stderr until a log file is set.
var FSLogger = NewConsole(os.Stderr)

func InitializeLogger(active bool, logfilename string) {
	if active {

		file, err := os.OpenFile(logfilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			log.Fatal(err)
		}
		FSLogger = New(file)

	} else {
		FSLogger = NewConsole(os.Stderr)
	}

}

// NewConsole returns a logger that keeps only warnings and errors.
func NewConsole(out io.Writer) Logger {
	console := New(out)
	console.entry.Logger.SetLevel(logrus.WarnLevel)
	return console
}

// New returns an active logger writing to out.
func New(out io.Writer) Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return Logger{entry: logrus.NewEntry(base).WithField("app", "GIFCarver"), active: true}
}

// WithField returns a copy of the logger tagging every message with key.
func (logger Logger) WithField(key string, value any) Logger {
	if !logger.active {
		return logger
	}
	return Logger{entry: logger.entry.WithField(key, value), active: true}
}

func (logger Logger) Info(msg string) {
	if logger.active {
		logger.entry.Info(msg)
	}
}

func (logger Logger) Error(msg any) {
	if logger.active {
		logger.entry.Error(msg)
	}
}

func (logger Logger) Warning(msg string) {
	if logger.active {
		logger.entry.Warn(msg)
	}
}
