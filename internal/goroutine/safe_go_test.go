package goroutine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/metrics"
)

type panicRecord struct {
	task      string
	recovered any
}

type chanReporter chan panicRecord

func (c chanReporter) ReportPanic(task string, recovered any, _ []byte) {
	c <- panicRecord{task: task, recovered: recovered}
}

func TestRunner_RecoversPanic(t *testing.T) {
	reports := make(chanReporter, 1)
	r := NewRunner(reports)

	r.Go("webhook-fanout", func() { panic("boom") })

	select {
	case rec := <-reports:
		assert.Equal(t, "webhook-fanout", rec.task)
		assert.Equal(t, "boom", rec.recovered)
	case <-time.After(time.Second):
		t.Fatal("panic не доставлена")
	}
}

func TestRunner_NoReportWithoutPanic(t *testing.T) {
	reports := make(chanReporter, 1)
	done := make(chan struct{})

	NewRunner(reports).Go("quiet", func() { close(done) })
	<-done

	select {
	case rec := <-reports:
		t.Fatalf("неожиданная panic: %v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGo_CountsPanics(t *testing.T) {
	before := testutil.ToFloat64(metrics.BackgroundPanics.WithLabelValues("counted"))

	done := make(chan struct{})
	Go("counted", func() {
		defer close(done)
		panic("x")
	})
	<-done

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.BackgroundPanics.WithLabelValues("counted")) == before+1
	}, time.Second, 10*time.Millisecond)
}
