// Package peeractor implements the per-peer event loop of §4.E: one logical
// actor per active session, routing inbound items to peer-scoped services
// or to the core controller's bus, and serializing outbound items in
// submission order.
package peeractor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/framer"
	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/transport"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// HandleOutcome is a service handler's verdict (§4.E step 2, §7
// propagation): either the item was handled (with an optional reply to
// emit), or it failed in a way the session can recover from locally.
type HandleOutcome struct {
	Reply items.Item
	Err   error // non-nil: HandleError(kind); nil Reply+nil Err: Handled(none)
}

// Service is one peer-scoped protocol registered under a service_type
// (§4.F). Services are cooperative: Start launches whatever background
// timers the service needs (heartbeat ticks, RTT probes, lobby keep-alive)
// and must respect ctx cancellation; HandleItem runs on the actor's single
// goroutine and must not block.
type Service interface {
	Info() items.RsServiceInfo
	Start(ctx context.Context, out chan<- items.Item)
	HandleItem(item items.Item) HandleOutcome
}

// CoreScoped marks a service_type that the actor must forward to the core
// controller's bus rather than dispatch to a local Service instance (§4.E
// step 2, e.g. GXS service-info routing).
type CoreScoped func(peer ids.PeerID, item items.Item)

// Mailbox carries outbound requests and lifecycle commands from the core
// controller into one peer actor (§4.E).
type Mailbox struct {
	Outbound chan items.Item
	Terminate chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{Outbound: make(chan items.Item, 1024), Terminate: make(chan struct{})}
}

// Actor is the per-peer event loop (§4.E).
type Actor struct {
	session  *transport.Session
	mailbox  *Mailbox
	services map[uint16]Service
	coreFwd  map[uint16]CoreScoped
	log      *logrus.Entry

	inbound chan inboundPacket
	stopped chan struct{}
}

type inboundPacket struct {
	item items.Item
	err  error
}

// New constructs an actor over an already-authenticated session.
func New(session *transport.Session, mailbox *Mailbox, log *logrus.Entry) *Actor {
	return &Actor{
		session:  session,
		mailbox:  mailbox,
		services: make(map[uint16]Service),
		coreFwd:  make(map[uint16]CoreScoped),
		inbound:  make(chan inboundPacket, 1024),
		stopped:  make(chan struct{}),
		log:      log,
	}
}

// RegisterService installs a peer-scoped service handler for its
// advertised service_type.
func (a *Actor) RegisterService(svcType uint16, s Service) { a.services[svcType] = s }

// RegisterCoreForward installs a core-scoped forwarder for a service_type
// that this actor never handles itself (§4.E step 2).
func (a *Actor) RegisterCoreForward(svcType uint16, f CoreScoped) { a.coreFwd[svcType] = f }

// Run drives the event loop until the mailbox is closed or the stream EOFs
// (§4.E boot + event loop + graceful shutdown). It blocks until shutdown.
func (a *Actor) Run(ctx context.Context, reg *items.Registry, localServices []items.RsServiceInfo) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Boot: the first outbound item on every new session is a
	// ServiceInfoListItem (§4.E "Boot"). It is queued before any service
	// starts, since several services queue an item from Start.
	a.mailbox.Outbound <- &items.ServiceInfoListItem{Services: localServices}

	for _, svc := range a.services {
		svc.Start(ctx, a.mailbox.Outbound)
	}

	go a.readLoop(reg)

	for {
		select {
		case pkt := <-a.inbound:
			if pkt.err != nil {
				a.log.WithError(pkt.err).Warn("peeractor: inbound error, terminating session")
				a.shutdown()
				return
			}
			a.dispatch(pkt.item)

		case out, ok := <-a.mailbox.Outbound:
			if !ok {
				a.shutdown()
				return
			}
			if err := a.sendItem(out); err != nil {
				a.log.WithError(err).Warn("peeractor: write failed, terminating session")
				a.shutdown()
				return
			}

		case <-a.mailbox.Terminate:
			a.shutdown()
			return

		case <-ctx.Done():
			a.shutdown()
			return
		}
	}
}

func (a *Actor) dispatch(item items.Item) {
	svcType := item.ServiceType()
	if svc, ok := a.services[svcType]; ok {
		outcome := svc.HandleItem(item)
		if outcome.Err != nil {
			a.log.WithError(outcome.Err).WithField("service", svcType).Warn("peeractor: service handler error")
			return
		}
		if outcome.Reply != nil {
			if err := a.sendItem(outcome.Reply); err != nil {
				a.log.WithError(err).Warn("peeractor: reply write failed")
			}
		}
		return
	}
	if fwd, ok := a.coreFwd[svcType]; ok {
		fwd(a.session.PeerID, item)
		return
	}
	a.log.WithField("service", fmt.Sprintf("0x%04x", svcType)).Warn("peeractor: dropping item for unregistered service")
}

func (a *Actor) sendItem(item items.Item) error {
	h, payload := items.Encode(item)
	pkts := framer.Split(a.session.NextSliceID, h, payload)
	return a.session.WritePackets(pkts)
}

func (a *Actor) readLoop(reg *items.Registry) {
	for {
		h, sh, payload, err := a.session.ReadPacket()
		if err != nil {
			a.inbound <- inboundPacket{err: err}
			return
		}

		if h.Service == items.ServiceSliceProbe {
			continue // §8 invariant 8: slice-probe produces zero outbound items
		}

		final, assembled, rerr := a.session.Reassembler().Feed(h, sh, payload)
		if rerr != nil {
			a.inbound <- inboundPacket{err: rerr}
			return
		}
		if assembled == nil && sh != nil {
			continue // slice group still incomplete
		}

		item, derr := reg.Decode(final, assembled)
		if derr != nil {
			// Codec error inside a well-framed packet: drop the item,
			// keep the session alive (§7).
			a.log.WithError(derr).Warn("peeractor: decode failed, dropping item")
			continue
		}
		a.inbound <- inboundPacket{item: item}
	}
}

func (a *Actor) shutdown() {
	select {
	case <-a.stopped:
		return
	default:
		close(a.stopped)
	}
	_ = a.session.Close()
}
