package store

import "github.com/sirupsen/logrus"

func logEntry() *logrus.Entry {
	return logrus.WithField("component", "store")
}
