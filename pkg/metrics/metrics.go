// Package metrics defines the crawler's metrics interface.
//
// The interface is implemented by pkg/metrics/prometheus. A nil Recorder is
// valid everywhere and records nothing, so disabling metrics has zero
// overhead.
package metrics

// Recorder counts crawler activity.
type Recorder interface {
	// FeedRequest counts one classified feed request.
	// direction is "forward" or "backward"; class is the result class
	// ("page", "transient_error", "too_many_requests", "precondition_failed",
	// "offset_invalid", "unexpected_status").
	FeedRequest(direction, class string)

	// PageHandled counts a non-empty page handed to the data handler.
	PageHandled(direction string, items int)

	// PositionSaved counts one successful position write.
	PositionSaved(direction string)

	// PositionDropped counts a position drop after offset invalidation.
	PositionDropped()

	// Restarted counts a supervisor re-bootstrap.
	Restarted()
}

// FeedRequest records on a possibly-nil Recorder.
func FeedRequest(r Recorder, direction, class string) {
	if r != nil {
		r.FeedRequest(direction, class)
	}
}

// PageHandled records on a possibly-nil Recorder.
func PageHandled(r Recorder, direction string, items int) {
	if r != nil {
		r.PageHandled(direction, items)
	}
}

// PositionSaved records on a possibly-nil Recorder.
func PositionSaved(r Recorder, direction string) {
	if r != nil {
		r.PositionSaved(direction)
	}
}

// PositionDropped records on a possibly-nil Recorder.
func PositionDropped(r Recorder) {
	if r != nil {
		r.PositionDropped()
	}
}

// Restarted records on a possibly-nil Recorder.
func Restarted(r Recorder) {
	if r != nil {
		r.Restarted()
	}
}
