package notestore

import (
	"sync"
	"sync/atomic"

	"github.com/starford/jotter/internal/models"
)

// Subscription delivers collection snapshots until it is closed.
//
// Delivery is coalescing: a subscriber that falls behind skips intermediate
// snapshots but always receives the most recent one. Snapshots are shared
// between subscribers and must be treated as read-only.
type Subscription struct {
	ch     chan []models.Note
	filter func([]models.Note) []models.Note
	feed   *feed
	done   chan struct{}
	once   sync.Once
}

// C returns the snapshot channel. It is closed after Close or store shutdown.
func (s *Subscription) C() <-chan []models.Note {
	return s.ch
}

// Close stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.feed.unsubscribe(s)
	})
}

type subscribeReq struct {
	sub     *Subscription
	initial []models.Note
}

type publishReq struct {
	snapshot  []models.Note
	delivered chan struct{}
}

// feed fans collection snapshots out to subscribers.
//
// A single loop goroutine owns the subscriber set; public methods talk to it
// over channels, so no mutex guards the set.
type feed struct {
	subscribeCh   chan subscribeReq
	unsubscribeCh chan *Subscription
	publishCh     chan publishReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

func newFeed() *feed {
	f := &feed{
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan *Subscription),
		publishCh:     make(chan publishReq),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *feed) run() {
	defer close(f.stopped)

	subs := make(map[*Subscription]struct{})

	for {
		select {
		case <-f.stopCh:
			for s := range subs {
				close(s.ch)
			}
			return

		case req := <-f.subscribeCh:
			subs[req.sub] = struct{}{}
			deliver(req.sub, req.initial)

		case s := <-f.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}

		case req := <-f.publishCh:
			for s := range subs {
				deliver(s, req.snapshot)
			}
			close(req.delivered)

		case resp := <-f.countReqCh:
			resp <- len(subs)
		}
	}
}

// deliver replaces any undelivered snapshot with the new one. Only the loop
// sends on s.ch, so after the drain the buffered send cannot block.
func deliver(s *Subscription, snapshot []models.Note) {
	if s.filter != nil {
		snapshot = s.filter(snapshot)
	}
	select {
	case s.ch <- snapshot:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snapshot
	}
}

func (f *feed) newSubscription(filter func([]models.Note) []models.Note) *Subscription {
	return &Subscription{
		ch:     make(chan []models.Note, 1),
		filter: filter,
		feed:   f,
		done:   make(chan struct{}),
	}
}

// subscribe registers s and hands it the initial snapshot.
func (f *feed) subscribe(s *Subscription, initial []models.Note) {
	if f.closed.Load() {
		s.once.Do(func() { close(s.done) })
		close(s.ch)
		return
	}
	select {
	case f.subscribeCh <- subscribeReq{sub: s, initial: initial}:
	case <-f.stopped:
		close(s.ch)
	}
}

func (f *feed) unsubscribe(s *Subscription) {
	if f.closed.Load() {
		return
	}
	select {
	case f.unsubscribeCh <- s:
	case <-f.stopped:
	}
}

// publish returns once every subscriber holds snapshot (or a newer one).
func (f *feed) publish(snapshot []models.Note) {
	if f.closed.Load() {
		return
	}
	req := publishReq{snapshot: snapshot, delivered: make(chan struct{})}
	select {
	case f.publishCh <- req:
	case <-f.stopped:
		return
	}
	select {
	case <-req.delivered:
	case <-f.stopped:
	}
}

func (f *feed) count() int {
	if f.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case f.countReqCh <- resp:
	case <-f.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-f.stopped:
		return 0
	}
}

func (f *feed) close() {
	if f.closed.CompareAndSwap(false, true) {
		close(f.stopCh)
	}
	<-f.stopped
}
