package notification

import (
	"context"

	"rotapool/pkg/interfaces"

	"go.uber.org/multierr"
)

// Fanout delivers each event to every recorder, joining their errors
type Fanout []interfaces.EventRecorder

var _ interfaces.EventRecorder = Fanout(nil)

// NewFanout drops nil recorders. It returns nil when none remain.
func NewFanout(recorders ...interfaces.EventRecorder) interfaces.EventRecorder {
	var out Fanout
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// RecordEvent implements interfaces.EventRecorder
func (f Fanout) RecordEvent(ctx context.Context, event *interfaces.ResourceEvent) error {
	var err error
	for _, r := range f {
		err = multierr.Append(err, r.RecordEvent(ctx, event))
	}
	return err
}
