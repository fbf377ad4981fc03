package items

// Service type constants (§4.F). Part of the external wire contract; values
// must not drift (§6).
const (
	ServiceServiceInfo uint16 = 0x0020
	ServiceHeartbeat   uint16 = 0x0016
	ServiceRTT         uint16 = 0x1011
	ServiceBwCtrl      uint16 = 0x0021
	ServiceStatus      uint16 = 0x0102
	ServiceChat        uint16 = 0x0012
	ServiceTurtle      uint16 = 0x0014
	ServiceDiscovery   uint16 = 0x0011

	// ServiceGxsID is the one GXS service instance wired up end to end
	// (§4.G, §4.H); other RetroShare GXS services (forums, channels, ...)
	// share the same NXS item shapes under their own service_type and are
	// out of scope here.
	ServiceGxsID uint16 = 0x0211

	// ServiceSliceProbe is the sentinel used by the framer's slice-probe
	// item (§4.C.3); it is not a real negotiated service.
	ServiceSliceProbe uint16 = 0xAABB
)

// Subtype constants, one block per service.
const (
	SubServiceInfoList uint8 = 0x03
)

const (
	SubHeartbeatPing uint8 = 0x01
)

const (
	SubRTTPing uint8 = 0x01
	SubRTTPong uint8 = 0x02
)

const (
	SubBwCtrl uint8 = 0x01
)

const (
	SubStatus uint8 = 0x01
)

const (
	SubChatMessage    uint8 = 0x01
	SubChatStatus     uint8 = 0x02
	SubChatAvatar     uint8 = 0x03
	SubChatLobbyBounce uint8 = 0x05
	SubChatLobbyEvent  uint8 = 0x06
	SubChatLobbyInvite uint8 = 0x07
)

const (
	SubTurtleOpenTunnel  uint8 = 0x01
	SubTurtleTunnelOk    uint8 = 0x02
	SubTurtleGenericData uint8 = 0x03
)

const (
	SubDiscoveryPeerRecord uint8 = 0x01
)

const SubSliceProbe uint8 = 0x00

// NXS sync/transaction subtypes (§4.H), registered per GXS service_type.
const (
	SubNxsSyncGroup   uint8 = 0x01
	SubNxsGroupList   uint8 = 0x02
	SubNxsSyncMessage uint8 = 0x03
	SubNxsMessageList uint8 = 0x04
	SubNxsTransaction uint8 = 0x05
	SubNxsGroupPush   uint8 = 0x06
	SubNxsMessagePush uint8 = 0x07
)

// TLV tag constants used across the item schemas (§4.A). Some of these are
// intentionally reused at multiple nesting levels, a reproduced legacy
// idiosyncrasy per §9 ("fixed tag value 0x0001 reused at three nesting
// levels of the service-info map") — callers pass the tag explicit at each
// level rather than relying on a single named constant.
const (
	TlvServiceInfoMap     uint16 = 0x0110
	TlvServiceInfoPair    uint16 = 0x0001
	TlvServiceInfoEntry   uint16 = 0x0001
	TlvServiceInfoName    uint16 = 0x0001

	TlvString             uint16 = 0x0211
	TlvPeerID             uint16 = 0x0216
	TlvKeySignature       uint16 = 0x0230
	TlvKeySignatureKeyID  uint16 = 0x0217
	TlvKeySignatureData   uint16 = 0x0231

	TlvChatLobbyInfo      uint16 = 0x0241
	TlvChatLobbyBounce    uint16 = 0x0242

	TlvAvatarImage        uint16 = 0x0243
)
