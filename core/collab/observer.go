package collab

// Observer is notified of lifecycle and relay outcomes, eg. to export metrics.
type Observer interface {
	ConnectionJoined(roomID string)
	ConnectionLeft(roomID string)
	JoinRejected(roomID string)
	EventRelayed(event string, recipients int)
	EventDropped(event, reason string)
}

type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) ConnectionJoined(string)  {}
func (NopObserver) ConnectionLeft(string)    {}
func (NopObserver) JoinRejected(string)      {}
func (NopObserver) EventRelayed(string, int) {}
func (NopObserver) EventDropped(_, _ string) {}
