package notifier

import (
	"fmt"
	"time"

	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/notifier/providers"
)

// Notifier tells the dashboard that derived tables changed
type Notifier struct {
	signaler Signaler
	now      func() time.Time
}

// Signaler writes a freshness marker somewhere a consumer can poll it.
type Signaler interface {
	Signal(at time.Time) (string, error)
}

// Reader is the consumer side of a Signaler.
type Reader interface {
	Read() (value string, ok bool, err error)
}

// New creates a new notifier with the given signaler
func New(signaler Signaler) *Notifier {
	return &Notifier{signaler: signaler, now: time.Now}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.SignalConfig) (*Notifier, error) {
	var signaler Signaler

	switch cfg.Provider {
	case "file", "":
		signaler = providers.NewFileSignal(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown signal provider: %s", cfg.Provider)
	}

	return New(signaler), nil
}

// NewReaderFromConfig returns the consumer side for the configured provider.
func NewReaderFromConfig(cfg config.SignalConfig) (Reader, error) {
	switch cfg.Provider {
	case "file", "":
		return providers.NewFileSignal(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown signal provider: %s", cfg.Provider)
	}
}

// SignalReload writes the current time and returns the written value
func (n *Notifier) SignalReload() (string, error) {
	return n.signaler.Signal(n.now())
}
