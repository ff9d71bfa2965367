package doubaospeech

// RealtimeMetrics receives session counters as they change.
//
// Implementations must be safe for concurrent use. The session calls them
// from the receive loop and from the sending goroutine.
type RealtimeMetrics interface {
	AudioFrameSent()
	AudioFrameDropped()
	Reconnected()
	FrameDropped()
	ServerError(code int)
}

type nopMetrics struct{}

func (nopMetrics) AudioFrameSent()    {}
func (nopMetrics) AudioFrameDropped() {}
func (nopMetrics) Reconnected()       {}
func (nopMetrics) FrameDropped()      {}
func (nopMetrics) ServerError(int)    {}
