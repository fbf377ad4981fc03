package gxs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// requestTimeout bounds how long a caller waits for a one-shot reply
// before giving up (§4.G "bounded timeout", §5 "a timeout on a GXS
// request yields None to the requester; any late reply is discarded").
const requestTimeout = 5 * time.Second

// missingKeyMaxRetries bounds the async key-fetch retry loop before a
// dead-letter (§7 "a dead-letter after 3 attempts").
const missingKeyMaxRetries = 3

type opKind int

const (
	opPutGroup opKind = iota
	opPutMessage
	opGetGroupMeta
	opGetMessages
	opGroupsUpdatedSince
)

type request struct {
	kind     opKind
	group    Group
	message  Message
	groupID  ids.GxsGroupID
	sinceTS  int64
	now      int64
	identity KeyResolver
	reply    chan response
}

type response struct {
	err       error
	groupMeta GroupMeta
	messages  []Message
	groupIDs  []ids.GxsGroupID
}

// Worker is the single goroutine that owns a Store and drains its request
// queue cooperatively, matching §4.G/§5's "store is the sole writer" and
// "independent task" rules for the GXS subsystem.
type Worker struct {
	log   *logrus.Entry
	store *Store

	requests chan request

	deadLetters chan deadLetter

	// metaGroup coalesces concurrent GetGroupMeta calls for the same
	// group: several peers' NXS controllers can ask for the same
	// frequently-synced group within the same tick, and there is no
	// reason to round-trip the worker queue more than once for them.
	metaGroup singleflight.Group
}

type deadLetter struct {
	At     time.Time
	Reason string
}

func NewWorker(log *logrus.Entry, store *Store) *Worker {
	return &Worker{
		log:         log,
		store:       store,
		requests:    make(chan request, 256),
		deadLetters: make(chan deadLetter, 64),
	}
}

// Run drains the request queue until ctx is cancelled (§5 "independent
// tasks").
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			w.handle(ctx, req)
		}
	}
}

func (w *Worker) handle(ctx context.Context, req request) {
	var resp response
	switch req.kind {
	case opPutGroup:
		resp.err = w.putGroupWithRetry(ctx, req.group, req.now)
	case opPutMessage:
		resp.err = w.putMessageWithRetry(ctx, req.message, req.now, req.identity)
	case opGetGroupMeta:
		resp.groupMeta, resp.err = w.store.GetGroupMeta(req.groupID)
	case opGetMessages:
		resp.messages, resp.err = w.store.GetMessages(req.groupID, req.sinceTS)
	case opGroupsUpdatedSince:
		resp.groupIDs, resp.err = w.store.GroupsUpdatedSince(req.sinceTS)
	}
	select {
	case req.reply <- resp:
	default:
	}
}

// putGroupWithRetry implements the "missing key triggers a bounded async
// fetch request and retries the original insert on arrival (with a
// dead-letter after 3 attempts)" rule from §7. The concrete key-fetch
// transport is supplied by the core controller via KeyFetcher; without one
// a missing key fails immediately.
func (w *Worker) putGroupWithRetry(ctx context.Context, g Group, now int64) error {
	var lastErr error
	for attempt := 0; attempt < missingKeyMaxRetries; attempt++ {
		err := w.store.PutGroup(g, now)
		if err == nil {
			return nil
		}
		lastErr = err
		if err != ErrKeyMissing {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	w.deadLetter(fmt.Sprintf("put_group %s: %v", g.GroupID, lastErr))
	return lastErr
}

func (w *Worker) putMessageWithRetry(ctx context.Context, m Message, now int64, identity KeyResolver) error {
	var lastErr error
	for attempt := 0; attempt < missingKeyMaxRetries; attempt++ {
		err := w.store.PutMessage(m, now, identity)
		if err == nil {
			return nil
		}
		lastErr = err
		if err != ErrKeyMissing {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	w.deadLetter(fmt.Sprintf("put_message %s: %v", m.MessageID, lastErr))
	return lastErr
}

func (w *Worker) deadLetter(reason string) {
	entry := deadLetter{At: time.Now(), Reason: reason}
	select {
	case w.deadLetters <- entry:
	default:
		w.log.Warn("gxs: dead-letter queue full, dropping new entry")
	}
	w.log.WithField("reason", reason).Error("gxs: dead-lettered after max retries")
}

func (w *Worker) DeadLetters() <-chan deadLetter { return w.deadLetters }

func (w *Worker) submit(ctx context.Context, req request) response {
	req.reply = make(chan response, 1)
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
	select {
	case resp := <-req.reply:
		return resp
	case <-time.After(requestTimeout):
		return response{err: fmt.Errorf("gxs: request timed out")}
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
}

// PutGroup queues a put_group request and waits for the outcome.
func (w *Worker) PutGroup(ctx context.Context, g Group, now int64) error {
	return w.submit(ctx, request{kind: opPutGroup, group: g, now: now}).err
}

// PutMessage queues a put_message request.
func (w *Worker) PutMessage(ctx context.Context, m Message, now int64, identity KeyResolver) error {
	return w.submit(ctx, request{kind: opPutMessage, message: m, now: now, identity: identity}).err
}

// GetGroupMeta queues a get_group_meta request, coalescing concurrent
// lookups of the same group id into a single worker round trip.
func (w *Worker) GetGroupMeta(ctx context.Context, id ids.GxsGroupID) (GroupMeta, error) {
	key := strconv.FormatUint(xxhash.Sum64(id[:]), 16)
	v, err, _ := w.metaGroup.Do(key, func() (any, error) {
		resp := w.submit(ctx, request{kind: opGetGroupMeta, groupID: id})
		if resp.err != nil {
			return GroupMeta{}, resp.err
		}
		return resp.groupMeta, nil
	})
	if err != nil {
		return GroupMeta{}, err
	}
	return v.(GroupMeta), nil
}

// GetMessages queues a get_messages request.
func (w *Worker) GetMessages(ctx context.Context, group ids.GxsGroupID, sinceTS int64) ([]Message, error) {
	resp := w.submit(ctx, request{kind: opGetMessages, groupID: group, sinceTS: sinceTS})
	return resp.messages, resp.err
}

// GroupsUpdatedSince queues the SyncGroup-backing query (§4.H).
func (w *Worker) GroupsUpdatedSince(ctx context.Context, sinceTS int64) ([]ids.GxsGroupID, error) {
	resp := w.submit(ctx, request{kind: opGroupsUpdatedSince, sinceTS: sinceTS})
	return resp.groupIDs, resp.err
}
