package indi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/logger"
)

// Update is one observed property state.
type Update struct {
	Property Property
	State    State
}

// Subscription receives state changes of one property.
type Subscription struct {
	C <-chan Update

	w    *Watcher
	id   uint64
	prop Property
	ch   chan Update

	// guarded by w.mu
	last State
}

// arm discards anything observed so far so the next poll is always
// delivered.
func (s *Subscription) arm() {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.last = ""
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.w.unsubscribe(s)
}

// Watcher polls the state of subscribed properties and fans changes out to
// per-property subscribers.
type Watcher struct {
	transport Transport
	interval  time.Duration
	clock     clock.WithTicker
	log       zerolog.Logger

	// held for a whole poll, and by writes so no poll straddles one
	pollMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   map[Property]map[uint64]*Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(t Transport, interval time.Duration, clk clock.WithTicker, log zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Watcher{
		transport: t,
		interval:  interval,
		clock:     clk,
		log:       logger.WithComponent(log, "indi-watcher"),
		subs:      make(map[Property]map[uint64]*Subscription),
	}
}

// Subscribe starts delivering state changes of prop.
func (w *Watcher) Subscribe(prop Property) *Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	ch := make(chan Update, 4)
	s := &Subscription{C: ch, w: w, id: w.nextID, prop: prop, ch: ch}
	if w.subs[prop] == nil {
		w.subs[prop] = make(map[uint64]*Subscription)
	}
	w.subs[prop][s.id] = s
	return s
}

func (w *Watcher) unsubscribe(s *Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.subs[s.prop]
	if set == nil {
		return
	}
	delete(set, s.id)
	if len(set) == 0 {
		delete(w.subs, s.prop)
	}
}

// Subscribers reports how many subscriptions prop has.
func (w *Watcher) Subscribers(prop Property) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[prop])
}

// Start polls every interval until Stop or ctx ends.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	ticker := w.clock.NewTicker(w.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				w.poll(ctx)
			}
		}
	}()
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Write runs set with polling paused, then arms sub so that only states
// read after the write reach it.
func (w *Watcher) Write(sub *Subscription, set func() error) error {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()
	if err := set(); err != nil {
		return err
	}
	sub.arm()
	return nil
}

func (w *Watcher) poll(ctx context.Context) {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	w.mu.Lock()
	props := make([]Property, 0, len(w.subs))
	for p := range w.subs {
		props = append(props, p)
	}
	w.mu.Unlock()

	for _, p := range props {
		st, err := w.transport.State(ctx, p)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Debug().Err(err).Str("property", p.String()).Msg("state poll failed")
			}
			continue
		}
		w.deliver(Update{Property: p, State: st})
	}
}

func (w *Watcher) deliver(u Update) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range w.subs[u.Property] {
		if u.State == s.last {
			continue
		}
		s.last = u.State
		// latest state wins when the reader lags
		select {
		case s.ch <- u:
		default:
			select {
			case <-s.ch:
			default:
			}
			s.ch <- u
		}
	}
}
