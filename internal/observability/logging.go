// Package observability wires logging and metrics for the server.
package observability

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var loggingOnce sync.Once

// ConfigureLogging sets up the standard logrus logger once per process.
func ConfigureLogging(level string) error {
	var err error

	loggingOnce.Do(func() {
		logrus.SetFormatter(&logrus.JSONFormatter{})

		if level == "" {
			return
		}
		lvl, errParse := logrus.ParseLevel(level)
		if errParse != nil {
			err = errParse
			return
		}
		logrus.SetLevel(lvl)
		logrus.Debug("Set log level to: " + lvl.String())
	})

	return err
}
