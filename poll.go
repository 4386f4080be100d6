package pawmate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultPollInterval = 2 * time.Second

// poller is the polling fallback: while no push channel is subscribed, it
// reconciles the conversation on a fixed interval. Each tick fetches the
// complete ordered message list and hands the whole batch to onBatch, so
// the reducer can do an idempotent replace instead of patching deltas.
//
// There is no backoff and no circuit breaker; the bounded retry cadence is
// the resilience mechanism. A failed tick is logged and skipped.
type poller struct {
	interval time.Duration
	fetch    func(context.Context) ([]Message, error)
	// newest reports the freshness marker owned by the session: the latest
	// creation timestamp already applied. A tick whose fetched batch is not
	// newer than this marker is a no-op.
	newest  func() time.Time
	onBatch func([]Message)
	log     zerolog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// start begins the reconciliation loop. At most one loop runs per poller;
// calling start while running is a no-op.
func (p *poller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	go p.loop(p.stopCh)
}

// stop cancels the loop. Idempotent.
func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
	p.stopCh = nil
}

// active reports whether the loop is running.
func (p *poller) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *poller) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			p.tick(stopCh)
		}
	}
}

func (p *poller) tick(stopCh chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
	defer cancel()

	messages, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("poll tick failed, retrying next interval")
		return
	}

	if !p.fresher(messages) {
		return
	}

	select {
	case <-stopCh:
		// Stopped while fetching; drop the batch instead of racing a
		// teardown.
		return
	default:
	}
	p.onBatch(messages)
}

// fresher reports whether the batch carries anything newer than the
// session's freshness marker.
func (p *poller) fresher(messages []Message) bool {
	if len(messages) == 0 {
		return false
	}
	var newest time.Time
	for _, m := range messages {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	return newest.After(p.newest())
}
