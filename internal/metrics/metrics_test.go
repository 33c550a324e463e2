package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuestionRequest("ok", 300*time.Millisecond)
	m.ObserveQuestionRequest("ok", time.Second)
	m.ObserveQuestionRequest("error", 2*time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.questionRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.questionRequests.WithLabelValues("error")))

	m.OnEvent(exam.Event{Type: exam.EventCompleted, Reason: exam.ReasonTimeout})
	m.OnEvent(exam.Event{Type: exam.EventLoadFailed, ErrorKind: "parse"})
	m.OnEvent(exam.Event{Type: exam.EventTick})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.questionRejected.WithLabelValues("parse")))

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))

	count, err := testutil.GatherAndCount(reg, "fluentflow_question_request_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
