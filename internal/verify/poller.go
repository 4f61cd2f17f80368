package verify

import (
	"context"
	"log"
	"time"
)

// Poller runs verification passes on an interval while the status server
// is up
type Poller struct {
	verifier *Verifier
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPoller creates a poller driving the given verifier
func NewPoller(verifier *Verifier, interval time.Duration) *Poller {
	return &Poller{
		verifier: verifier,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. The first pass runs immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		defer close(p.done)
		log.Printf("Verification poller started (interval %s)", p.interval)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			if _, err := p.verifier.Run(ctx); err != nil {
				log.Printf("Polled verification failed: %v", err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Println("Verification poller stopped")
				return
			}
		}
	}()
}

// Stop cancels the polling loop and waits for it to exit
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}
