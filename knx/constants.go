package knx

// Constants registry (C1): bidirectional mapping between symbolic names and
// the byte/word values used on the wire, grouped by category. Each category
// gets its own typed map pair rather than one generic category dispatcher,
// so callers keep compile-time type safety across unrelated byte spaces.

// KNXnet/IP status codes (used in CONNECT_RESPONSE, CONNECTIONSTATE_RESPONSE,
// DISCONNECT_RESPONSE, TUNNELLING_ACK).
const (
	StatusNoError               byte = 0x00
	StatusHostProtocolType      byte = 0x01
	StatusVersionNotSupported   byte = 0x02
	StatusSequenceNumber        byte = 0x04
	StatusConnectionID          byte = 0x21
	StatusConnectionType        byte = 0x22
	StatusConnectionOption      byte = 0x23
	StatusNoMoreConnections     byte = 0x24
	StatusDataConnection        byte = 0x26
	StatusKNXConnection         byte = 0x27
)

var statusNames = map[byte]string{
	StatusNoError:             "E_NO_ERROR",
	StatusHostProtocolType:    "E_HOST_PROTOCOL_TYPE",
	StatusVersionNotSupported: "E_VERSION_NOT_SUPPORTED",
	StatusSequenceNumber:      "E_SEQUENCE_NUMBER",
	StatusConnectionID:        "E_CONNECTION_ID",
	StatusConnectionType:      "E_CONNECTION_TYPE",
	StatusConnectionOption:    "E_CONNECTION_OPTION",
	StatusNoMoreConnections:   "E_NO_MORE_CONNECTIONS",
	StatusDataConnection:      "E_DATA_CONNECTION",
	StatusKNXConnection:       "E_KNX_CONNECTION",
}

var statusValues = reverseMap(statusNames)

// StatusName returns the symbolic name for a status byte, or "UNKNOWN" if
// the value isn't registered.
func StatusName(status byte) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return "UNKNOWN"
}

// StatusValue returns the byte value for a symbolic status name.
func StatusValue(name string) (byte, bool) {
	v, ok := statusValues[name]
	return v, ok
}

// Connection types (CRI/CRD connection_type field).
const (
	ConnectionTypeTunnel byte = 0x04
)

var connectionTypeNames = map[byte]string{
	ConnectionTypeTunnel: "TUNNEL_CONNECTION",
}

var connectionTypeValues = reverseMap(connectionTypeNames)

// ConnectionTypeName returns the symbolic name for a connection type byte.
func ConnectionTypeName(ct byte) string {
	if name, ok := connectionTypeNames[ct]; ok {
		return name
	}
	return "UNKNOWN"
}

// ConnectionTypeValue returns the byte value for a symbolic connection type name.
func ConnectionTypeValue(name string) (byte, bool) {
	v, ok := connectionTypeValues[name]
	return v, ok
}

// Host protocol codes (HPAI protocol_code field). Only IPv4/UDP is
// supported by this spec.
const (
	HostProtocolIPv4UDP byte = 0x01
)

var hostProtocolNames = map[byte]string{
	HostProtocolIPv4UDP: "IPV4_UDP",
}

var hostProtocolValues = reverseMap(hostProtocolNames)

// HostProtocolName returns the symbolic name for a host protocol code byte.
func HostProtocolName(code byte) string {
	if name, ok := hostProtocolNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// HostProtocolValue returns the byte value for a symbolic host protocol name.
func HostProtocolValue(name string) (byte, bool) {
	v, ok := hostProtocolValues[name]
	return v, ok
}

// KNX layer (tunnel CRI connection data). Only link-layer tunnelling is
// supported by this spec.
const (
	KNXLayerLinkLayer byte = 0x02
)

var knxLayerNames = map[byte]string{
	KNXLayerLinkLayer: "TUNNEL_LINKLAYER",
}

var knxLayerValues = reverseMap(knxLayerNames)

// KNXLayerName returns the symbolic name for a KNX layer byte.
func KNXLayerName(layer byte) string {
	if name, ok := knxLayerNames[layer]; ok {
		return name
	}
	return "UNKNOWN"
}

// KNXLayerValue returns the byte value for a symbolic KNX layer name.
func KNXLayerValue(name string) (byte, bool) {
	v, ok := knxLayerValues[name]
	return v, ok
}

// cEMI message codes.
const (
	MessageCodeLDataReq byte = 0x11
	MessageCodeLDataInd byte = 0x29
	MessageCodeLDataCon byte = 0x2E
)

var messageCodeNames = map[byte]string{
	MessageCodeLDataReq: "L_DATA_REQ",
	MessageCodeLDataInd: "L_DATA_IND",
	MessageCodeLDataCon: "L_DATA_CON",
}

var messageCodeValues = reverseMap(messageCodeNames)

// MessageCodeName returns the symbolic name for a cEMI message code byte.
func MessageCodeName(code byte) string {
	if name, ok := messageCodeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// MessageCodeValue returns the byte value for a symbolic message code name.
func MessageCodeValue(name string) (byte, bool) {
	v, ok := messageCodeValues[name]
	return v, ok
}

// Application services (APCI), as used for group communication. Values are
// the 2-bit codes as they sit in the high bits of the APCI field; see
// telegram.go for their exact bit position within the TPDU.
const (
	APCIGroupRead     byte = 0x00
	APCIGroupResponse byte = 0x01
	APCIGroupWrite    byte = 0x02
)

var apciNames = map[byte]string{
	APCIGroupRead:     "A_GROUPVALUE_READ",
	APCIGroupResponse: "A_GROUPVALUE_RESPONSE",
	APCIGroupWrite:    "A_GROUPVALUE_WRITE",
}

var apciValues = reverseMap(apciNames)

// APCIName returns the symbolic name for an APCI service code.
func APCIName(apci byte) string {
	if name, ok := apciNames[apci]; ok {
		return name
	}
	return "UNKNOWN"
}

// APCIValue returns the APCI service code for a symbolic name.
func APCIValue(name string) (byte, bool) {
	v, ok := apciValues[name]
	return v, ok
}

// reverseMap builds a name->value lookup from a value->name map.
func reverseMap(m map[byte]string) map[string]byte {
	out := make(map[string]byte, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
