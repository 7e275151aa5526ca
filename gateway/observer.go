package gateway

// Observer receives the gateway's recovery events, e.g. to render progress.
// Implementations must be safe for concurrent use.
type Observer interface {
	AccessTokenRejected(path string)
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	Retrying(path string)
	SessionTerminated()
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) AccessTokenRejected(_ string) {}
func (NoopObserver) Refreshing()                  {}
func (NoopObserver) RefreshOK()                   {}
func (NoopObserver) RefreshFailed(_ error)        {}
func (NoopObserver) Retrying(_ string)            {}
func (NoopObserver) SessionTerminated()           {}
