package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logger writing text to stdout and, when filePath is
// set, to a rotating log file as well.
func NewLogger(level logrus.Level, filePath string, maxAgeDays int) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: false})
	log.SetOutput(os.Stdout)

	if filePath == "" {
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotated := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100,
		MaxBackups: 30,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	fileFmt := &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	log.AddHook(lfshook.NewHook(lfshook.WriterMap{
		logrus.PanicLevel: rotated,
		logrus.FatalLevel: rotated,
		logrus.ErrorLevel: rotated,
		logrus.WarnLevel:  rotated,
		logrus.InfoLevel:  rotated,
		logrus.DebugLevel: rotated,
		logrus.TraceLevel: rotated,
	}, fileFmt))

	return log, nil
}
