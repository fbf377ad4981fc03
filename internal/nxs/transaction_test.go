package nxs

import (
	"errors"
	"testing"
	"time"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

func TestNewTransactionStartsInStartingPhase(t *testing.T) {
	var p ids.PeerID
	now := time.Unix(1000, 0)
	tx := NewTransaction(1, p, DirectionRequester, 1, now)
	if tx.Phase != PhaseStarting {
		t.Fatalf("expected PhaseStarting, got %v", tx.Phase)
	}
	if tx.Expired(now) {
		t.Fatal("freshly created transaction must not be expired")
	}
	if !tx.Expired(now.Add(TransactionDeadline + time.Second)) {
		t.Fatal("expected transaction to expire after the deadline elapses")
	}
}

func TestAdvanceSplitsByDirection(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID

	requester := NewTransaction(1, p, DirectionRequester, 1, now)
	requester.Advance(now)
	if requester.Phase != PhaseSending {
		t.Fatalf("expected requester to advance to PhaseSending, got %v", requester.Phase)
	}

	responder := NewTransaction(2, p, DirectionResponder, 1, now)
	responder.Advance(now)
	if responder.Phase != PhaseReceiving {
		t.Fatalf("expected responder to advance to PhaseReceiving, got %v", responder.Phase)
	}
}

func TestAcceptAdvancesSequenceAndTouchesDeadline(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID
	tx := NewTransaction(1, p, DirectionResponder, 2, now)

	if err := tx.Accept(0, now); err != nil {
		t.Fatalf("Accept(0): %v", err)
	}
	if tx.NextSeq != 1 || tx.ItemCount != 1 {
		t.Fatalf("expected NextSeq=1 ItemCount=1, got NextSeq=%d ItemCount=%d", tx.NextSeq, tx.ItemCount)
	}
	if tx.NextSeq >= uint32(tx.Expected) {
		t.Fatal("expected a 2-item transaction to remain incomplete after only one accepted item")
	}

	later := now.Add(TransactionDeadline - time.Second)
	if err := tx.Accept(1, later); err != nil {
		t.Fatalf("Accept(1): %v", err)
	}
	if tx.Expired(later) {
		t.Fatal("expected deadline to be refreshed by Accept activity")
	}
}

func TestAcceptRejectsOutOfOrderSequence(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID
	tx := NewTransaction(1, p, DirectionResponder, 1, now)

	err := tx.Accept(5, now)
	if err == nil {
		t.Fatal("expected an error for an out-of-order sequence number")
	}
	if tx.Phase != PhaseFailed {
		t.Fatalf("expected transaction to fail on out-of-order item, got %v", tx.Phase)
	}
}

func TestAcceptRejectsRequestListOverflow(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID
	tx := NewTransaction(1, p, DirectionResponder, MaxRequestItems, now)

	for i := 0; i < MaxRequestItems; i++ {
		if err := tx.Accept(uint32(i), now); err != nil {
			t.Fatalf("Accept(%d): unexpected error %v", i, err)
		}
	}
	err := tx.Accept(uint32(MaxRequestItems), now)
	if err == nil {
		t.Fatal("expected an error once the request-list cap is exceeded")
	}
	if tx.Phase != PhaseFailed {
		t.Fatalf("expected transaction to fail past the cap, got %v", tx.Phase)
	}
}

func TestCompleteAndFailSetTerminalPhase(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID

	ok := NewTransaction(1, p, DirectionRequester, 1, now)
	ok.Complete()
	if ok.Phase != PhaseCompleted {
		t.Fatalf("expected PhaseCompleted, got %v", ok.Phase)
	}

	bad := NewTransaction(2, p, DirectionRequester, 1, now)
	bad.Fail()
	if bad.Phase != PhaseFailed {
		t.Fatalf("expected PhaseFailed, got %v", bad.Phase)
	}
}

func TestPhaseStringCoversAllValues(t *testing.T) {
	cases := map[Phase]string{
		PhaseStarting:       "starting",
		PhaseSending:        "sending",
		PhaseReceiving:      "receiving",
		PhaseWaitingConfirm: "waiting-confirm",
		PhaseCompleted:      "completed",
		PhaseFailed:         "failed",
		Phase(99):           "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestErrorsAreDistinguishable(t *testing.T) {
	now := time.Unix(1000, 0)
	var p ids.PeerID
	outOfOrder := NewTransaction(1, p, DirectionResponder, 1, now)
	err1 := outOfOrder.Accept(9, now)

	overflow := NewTransaction(2, p, DirectionResponder, MaxRequestItems, now)
	for i := 0; i < MaxRequestItems; i++ {
		_ = overflow.Accept(uint32(i), now)
	}
	err2 := overflow.Accept(uint32(MaxRequestItems), now)

	if errors.Is(err1, err2) {
		t.Fatal("expected out-of-order and overflow errors to be distinct")
	}
}
