// Package logger builds the shared JSON logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger. Output is discarded when ENV=test.
func New() logrus.FieldLogger {
	log := logrus.New()
	if os.Getenv("ENV") == "test" {
		log.SetOutput(io.Discard)
	}
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyLevel: "level",
		},
	})

	return log
}
