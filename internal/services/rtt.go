package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
)

// RTTInterval is the default probe cadence.
const RTTInterval = 30 * time.Second

// RTTService measures round-trip time and clock skew via ping/pong with a
// monotonic sequence (§4.F). It keeps the original source's 3-sample ring
// for jitter smoothing before the value is handed to the status/display
// layer (SPEC_FULL §3, grounded on src/controller/connected_peer.rs).
type RTTService struct {
	log *logrus.Entry

	mu      sync.Mutex
	seq     uint32
	pending map[uint32]time.Time
	samples [3]time.Duration
	next    int
}

func NewRTTService(log *logrus.Entry) *RTTService {
	return &RTTService{log: log, pending: make(map[uint32]time.Time)}
}

func (r *RTTService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "RTT", ServiceNumber: uint32(items.ServiceRTT), VersionMajor: 1, MinMajor: 1}
}

func (r *RTTService) Start(ctx context.Context, out chan<- items.Item) {
	go func() {
		ticker := time.NewTicker(RTTInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.mu.Lock()
				r.seq++
				seq := r.seq
				r.pending[seq] = time.Now()
				r.mu.Unlock()
				select {
				case out <- &items.RTTPingItem{Seq: seq, SendTimeUs: time.Now().UnixMicro()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (r *RTTService) HandleItem(item items.Item) peeractor.HandleOutcome {
	switch it := item.(type) {
	case *items.RTTPingItem:
		return peeractor.HandleOutcome{Reply: &items.RTTPongItem{
			Seq:           it.Seq,
			SendTimeUs:    it.SendTimeUs,
			ReceiveTimeUs: time.Now().UnixMicro(),
		}}
	case *items.RTTPongItem:
		r.mu.Lock()
		sentAt, ok := r.pending[it.Seq]
		if ok {
			delete(r.pending, it.Seq)
			rtt := time.Since(sentAt)
			r.samples[r.next%3] = rtt
			r.next++
		}
		r.mu.Unlock()
	}
	return peeractor.HandleOutcome{}
}

// Average returns the mean of however many of the last 3 samples are
// populated; zero if none yet.
func (r *RTTService) Average() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if n > 3 {
		n = 3
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(n)
}
