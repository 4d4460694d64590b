package logger

import (
	"github.com/sirupsen/logrus"
)

// Log - глобальный логгер. До вызова Init пишет в stderr с уровнем Info.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// JSON для production, text включается через SetTextFormatter
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Inconsistency логирует нарушение инварианта, требующее ручной сверки.
func Inconsistency(fields logrus.Fields, msg string) {
	Log.WithFields(fields).WithField("alert", "reconciliation_required").Error(msg)
}
