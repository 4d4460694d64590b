// Package goroutine запускает фоновые задачи с перехватом panic.
package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/metrics"
)

// PanicReporter получает перехваченную panic фоновой задачи.
type PanicReporter interface {
	ReportPanic(task string, recovered any, stack []byte)
}

// Runner запускает именованные фоновые задачи.
type Runner struct {
	reporter PanicReporter
}

func NewRunner(reporter PanicReporter) *Runner {
	return &Runner{reporter: reporter}
}

// Go запускает fn в отдельной горутине. Panic не роняет процесс.
func (r *Runner) Go(task string, fn func()) {
	go func() {
		defer r.recover(task)
		fn()
	}()
}

func (r *Runner) recover(task string) {
	if rec := recover(); rec != nil {
		r.reporter.ReportPanic(task, rec, debug.Stack())
	}
}

// logReporter пишет в logger.Log на момент вызова (Init переназначает его).
type logReporter struct{}

func (logReporter) ReportPanic(task string, recovered any, stack []byte) {
	metrics.BackgroundPanics.WithLabelValues(task).Inc()
	logger.Log.WithFields(logrus.Fields{
		"task":  task,
		"panic": recovered,
	}).Errorf("goroutine: panic в фоновой задаче\n%s", stack)
}

var defaultRunner = NewRunner(logReporter{})

// Go запускает задачу через общий Runner с логированием и метрикой.
func Go(task string, fn func()) {
	defaultRunner.Go(task, fn)
}
