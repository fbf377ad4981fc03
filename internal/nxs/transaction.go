package nxs

import (
	"time"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// Phase is the transaction lifecycle of §3 "NXS transaction".
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseSending
	PhaseReceiving
	PhaseWaitingConfirm
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseSending:
		return "sending"
	case PhaseReceiving:
		return "receiving"
	case PhaseWaitingConfirm:
		return "waiting-confirm"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransactionDeadline and MaxRequestItems implement §4.H's "both sides
// hold a deadline (2000s) refreshed on activity" and "request-list size is
// capped (20 items)".
const (
	TransactionDeadline = 2000 * time.Second
	MaxRequestItems     = 20
	SyncTickInterval     = 60 * time.Second
)

// Direction distinguishes the requester side (Sending its request,
// eventually receiving pushed items) from the responder side (Receiving
// the request, eventually sending items) — §4.H "Starting → (requester:
// Sending / responder: Receiving)".
type Direction int

const (
	DirectionRequester Direction = iota
	DirectionResponder
)

// Transaction tracks one NXS exchange for a single (peer, service, id)
// triple (§3, §4.H).
type Transaction struct {
	ID        uint32
	Peer      ids.PeerID
	Direction Direction
	Phase     Phase

	// Expected is the item count declared by the Starting announcement
	// (§4.H); the transaction is only complete once NextSeq reaches it.
	Expected  int
	ItemCount int
	NextSeq   uint32

	deadline time.Time
}

// NewTransaction starts a transaction in PhaseStarting, per §4.H. expected
// is the item count declared by the peer's Starting announcement.
func NewTransaction(id uint32, peer ids.PeerID, dir Direction, expected int, now time.Time) *Transaction {
	return &Transaction{ID: id, Peer: peer, Direction: dir, Phase: PhaseStarting, Expected: expected, deadline: now.Add(TransactionDeadline)}
}

// Advance moves the transaction into its active phase once negotiation
// completes (§4.H "Starting → Sending/Receiving").
func (t *Transaction) Advance(now time.Time) {
	if t.Direction == DirectionRequester {
		t.Phase = PhaseSending // requester sends its request first
	} else {
		t.Phase = PhaseReceiving
	}
	t.touch(now)
}

// touch refreshes the deadline on activity (§4.H).
func (t *Transaction) touch(now time.Time) { t.deadline = now.Add(TransactionDeadline) }

// Accept records one received item, advancing NextSeq monotonically and
// enforcing the request-list cap (§4.H, §8 invariant 6's sibling for NXS
// sub-sequences: strictly increasing per transaction).
func (t *Transaction) Accept(seq uint32, now time.Time) error {
	if seq != t.NextSeq {
		t.Phase = PhaseFailed
		return errOutOfOrder(t.ID, t.NextSeq, seq)
	}
	if int(seq) >= MaxRequestItems {
		t.Phase = PhaseFailed
		return errTooManyItems(t.ID)
	}
	t.NextSeq++
	t.ItemCount++
	t.touch(now)
	return nil
}

// Expired reports whether now is past the refreshed deadline.
func (t *Transaction) Expired(now time.Time) bool { return now.After(t.deadline) }

// Complete marks success; Fail marks the transaction dead without touching
// timestamp vectors (§4.H "a failed transaction does not update timestamp
// vectors for that peer").
func (t *Transaction) Complete() { t.Phase = PhaseCompleted }
func (t *Transaction) Fail()     { t.Phase = PhaseFailed }
