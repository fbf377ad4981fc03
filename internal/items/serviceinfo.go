package items

import "github.com/rs-go/retroshare-node/internal/wire"

// RsServiceInfo describes one negotiated capability, mirroring the legacy
// RsServiceInfo record: a service's name, numeric type, current version and
// minimum accepted version (§4.F).
type RsServiceInfo struct {
	Name          string
	ServiceNumber uint32
	VersionMajor  uint16
	VersionMinor  uint16
	MinMajor      uint16
	MinMinor      uint16
}

// encode reproduces the exact legacy byte layout validated by scenario S3:
// a tag-0x0001 "pair" TLV wrapping a tag-0x0001 "entry" TLV wrapping two
// sibling tag-0x0001 TLVs — the numeric type alone, and a name+versions
// group that redundantly repeats the type field inline. The tag 0x0001 is
// reused at all three nesting levels verbatim (§9 legacy idiosyncrasy); do
// not factor this into named per-level constants, it would hide the bug.
func (e RsServiceInfo) encode(w *wire.Writer) {
	wire.WriteTlv(w, 0x0001, func(entry *wire.Writer) {
		wire.WriteTlv(entry, 0x0001, func(entry2 *wire.Writer) {
			wire.WriteTlv(entry2, 0x0001, func(typ *wire.Writer) {
				typ.U32(e.ServiceNumber)
			})
			wire.WriteTlv(entry2, 0x0001, func(nv *wire.Writer) {
				nv.U32(uint32(len(e.Name)))
				nv.RawBytes([]byte(e.Name))
				nv.U32(e.ServiceNumber)
				nv.U16(e.VersionMajor)
				nv.U16(e.VersionMinor)
				nv.U16(e.MinMajor)
				nv.U16(e.MinMinor)
			})
		})
	})
}

func decodeRsServiceInfo(r *wire.Reader) (RsServiceInfo, error) {
	var out RsServiceInfo
	_, err := wire.ReadTlv(r, 0x0001, func(entry *wire.Reader) (struct{}, error) {
		_, err := wire.ReadTlv(entry, 0x0001, func(entry2 *wire.Reader) (struct{}, error) {
			if _, err := wire.ReadTlv(entry2, 0x0001, func(typ *wire.Reader) (struct{}, error) {
				v, err := typ.U32()
				out.ServiceNumber = v
				return struct{}{}, err
			}); err != nil {
				return struct{}{}, err
			}
			_, err := wire.ReadTlv(entry2, 0x0001, func(nv *wire.Reader) (struct{}, error) {
				n, err := nv.U32()
				if err != nil {
					return struct{}{}, err
				}
				nameBytes, err := nv.Bytes(int(n))
				if err != nil {
					return struct{}{}, err
				}
				out.Name = string(nameBytes)
				if _, err := nv.U32(); err != nil { // redundant duplicate type field
					return struct{}{}, err
				}
				if out.VersionMajor, err = nv.U16(); err != nil {
					return struct{}{}, err
				}
				if out.VersionMinor, err = nv.U16(); err != nil {
					return struct{}{}, err
				}
				if out.MinMajor, err = nv.U16(); err != nil {
					return struct{}{}, err
				}
				out.MinMinor, err = nv.U16()
				return struct{}{}, err
			})
			return struct{}{}, err
		})
		return struct{}{}, err
	})
	return out, err
}

// ServiceInfoListItem enumerates the local peer's services (§4.E boot item,
// §6 TlvServiceInfoMap). Encoded as a tlv-set (no inner count; boundary is
// the outer TLV's total_length) of per-service pair TLVs.
type ServiceInfoListItem struct {
	Services []RsServiceInfo
}

func (i *ServiceInfoListItem) ServiceType() uint16 { return ServiceServiceInfo }
func (i *ServiceInfoListItem) Subtype() uint8      { return SubServiceInfoList }

func (i *ServiceInfoListItem) EncodeBody(w *wire.Writer) {
	wire.WriteTlvSet(w, TlvServiceInfoMap, i.Services, func(bw *wire.Writer, s RsServiceInfo) {
		s.encode(bw)
	})
}

func decodeServiceInfoList(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	list, err := wire.ReadTlvSet(body, TlvServiceInfoMap, decodeRsServiceInfo)
	if err != nil {
		return nil, err
	}
	return &ServiceInfoListItem{Services: list}, nil
}

func init() {
	registerDefault(ServiceServiceInfo, SubServiceInfoList, Schema{
		Decode: decodeServiceInfoList,
	})
}
