// Package items implements the declarative (service_type, subtype) → schema
// registry of §4.B: it is the single extension point for adding a service's
// wire types, and the only place that bridges internal/wire primitives to
// concrete Go item values.
package items

import (
	"fmt"

	"github.com/rs-go/retroshare-node/internal/wire"
)

// Item is an in-memory event exchanged between peers (§3): a header plus a
// typed payload that knows how to serialize itself.
type Item interface {
	// ServiceType and Subtype identify the schema this item was decoded
	// from (or will be encoded as).
	ServiceType() uint16
	Subtype() uint8
	// EncodeBody writes the payload bytes (header is handled by the
	// registry/framer, not by the item itself).
	EncodeBody(w *wire.Writer)
}

// Unknown wraps an item the registry has no schema for. Per §4.B this is not
// an error: the peer actor may drop or forward it untouched.
type Unknown struct {
	Service uint16
	Sub     uint8
	Payload []byte
}

func (u *Unknown) ServiceType() uint16 { return u.Service }
func (u *Unknown) Subtype() uint8      { return u.Sub }
func (u *Unknown) EncodeBody(w *wire.Writer) { w.RawBytes(u.Payload) }

// key is the (service_type, subtype) dispatch key: a flat declarative table
// as described in §4.B, not a nested map-of-maps.
type key struct {
	service uint16
	sub     uint8
}

// Schema is the (de)serialization vtable for one (service,subtype) pair —
// "a table keyed by (service_type, subtype) → vtable {decode, encode}"
// (§9, replacing the legacy dynamic-reflection item factory).
type Schema struct {
	Decode func(service uint16, sub uint8, body *wire.Reader) (Item, error)
}

// Registry maps (service_type, subtype) to a Schema. Populated once at
// startup via Register; read concurrently thereafter so no locking is used
// on the hot decode path.
type Registry struct {
	schemas map[key]Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{schemas: make(map[key]Schema)} }

// Register installs the schema for (service, sub). Registering twice for
// the same key is a programmer error and panics at startup.
func (r *Registry) Register(service uint16, sub uint8, s Schema) {
	k := key{service, sub}
	if _, exists := r.schemas[k]; exists {
		panic(fmt.Sprintf("items: duplicate registration for service=0x%04x sub=0x%02x", service, sub))
	}
	r.schemas[k] = s
}

// Decode looks up the schema for (header.Service, header.Subtype) and
// decodes payload. An unregistered pair yields *Unknown, not an error.
func (r *Registry) Decode(h wire.Header, payload []byte) (Item, error) {
	s, ok := r.schemas[key{h.Service, h.Subtype}]
	if !ok {
		return &Unknown{Service: h.Service, Sub: h.Subtype, Payload: append([]byte(nil), payload...)}, nil
	}
	body := wire.NewReader(payload)
	it, err := s.Decode(h.Service, h.Subtype, body)
	if err != nil {
		return nil, err
	}
	if err := body.AssertExhausted(); err != nil {
		return nil, err
	}
	return it, nil
}

// defaultReg accumulates the schemas registered by each service's init()
// function; NewRegistryWithDefaults hands callers a populated registry
// without ever sharing mutable state between them.
var defaultReg = NewRegistry()

func registerDefault(service uint16, sub uint8, s Schema) { defaultReg.Register(service, sub, s) }

// NewRegistryWithDefaults returns a fresh Registry pre-populated with every
// schema registered by this package's service files (§4.B, §9: "populate
// once at startup").
func NewRegistryWithDefaults() *Registry {
	r := NewRegistry()
	for k, s := range defaultReg.schemas {
		r.schemas[k] = s
	}
	return r
}

// Encode serializes item into (header, payload). Length in the returned
// header is the total packet size, the 8-byte header included; the payload
// is returned alone, and the framer rewrites Length once slicing is
// decided.
func Encode(item Item) (wire.Header, []byte) {
	w := wire.NewWriter()
	item.EncodeBody(w)
	body := w.Bytes()
	h := wire.Header{
		Version: 0x02,
		Service: item.ServiceType(),
		Subtype: item.Subtype(),
		Length:  uint32(wire.HeaderSize + len(body)),
	}
	return h, body
}
