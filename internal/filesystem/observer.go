package filesystem

import "sync"

// Observer records filesystem operation metrics. The metrics package
// provides the implementation so this package does not import it.
type Observer interface {
	// ObserveOperation records duration and error status for one call.
	// operation is "stat", "read" or "readdir".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveStaleError(op, volume string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)              {}
func (nopObserver) ObserveRetrySuccess(string, string)              {}
func (nopObserver) ObserveRetryFailure(string, string)              {}
func (nopObserver) ObserveStaleError(string, string)                {}

var (
	observerMu      sync.RWMutex
	defaultObserver Observer = nopObserver{}
)

// SetObserver sets the package-level metrics observer. Passing nil restores
// the no-op observer.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	observerMu.Lock()
	defaultObserver = o
	observerMu.Unlock()
}

func currentObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return defaultObserver
}
