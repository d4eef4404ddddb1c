package audit

import (
	"context"
	"time"

	"github.com/prperemyshlev/aths/internal/dispatch"
)

// Recorder hands events to a Sink through an executor. Record never blocks
// on the sink and never fails the caller.
type Recorder struct {
	sink Sink
	exec dispatch.Executor
	now  func() time.Time
}

func NewRecorder(sink Sink, exec dispatch.Executor, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{sink: sink, exec: exec, now: clock}
}

// Record fills in the timestamp and caller details from ctx and submits the event
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.sink == nil {
		return
	}

	client := ClientFromContext(ctx)
	if event.IPAddress == "" {
		event.IPAddress = client.IPAddress
	}
	if event.UserAgent == "" {
		event.UserAgent = client.UserAgent
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	r.exec.Submit(dispatch.Task{
		Name: "audit:" + string(event.Action),
		Run: func(ctx context.Context) error {
			return r.sink.Write(ctx, event)
		},
	})
}
