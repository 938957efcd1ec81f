package knx

import (
	"encoding/binary"
	"fmt"
	"net"
)

// KNXnet/IP service type identifiers (C5).
const (
	ServiceConnectRequest            uint16 = 0x0205
	ServiceConnectResponse           uint16 = 0x0206
	ServiceConnectionstateRequest    uint16 = 0x0207
	ServiceConnectionstateResponse   uint16 = 0x0208
	ServiceDisconnectRequest         uint16 = 0x0209
	ServiceDisconnectResponse        uint16 = 0x020A
	ServiceTunnellingRequest         uint16 = 0x0420
	ServiceTunnellingAck             uint16 = 0x0421
)

// Frame header constants.
const (
	headerSize    byte = 0x06
	protocolVer10 byte = 0x10
	headerLen          = 6

	hpaiLen           byte = 0x08
	hpaiFixedLen            = 8
	criTunnelLen      byte = 0x04
	crdTunnelLen      byte = 0x04
	tunnellingHdrLen  byte = 0x04
)

// Frame is implemented by each of the eight KNXnet/IP service frame
// variants. A single interface with one struct per service realizes the
// "tagged union for service frames" design note: construct by service-type
// switch in DecodeFrame, encode by type switch in EncodeFrame.
type Frame interface {
	ServiceType() uint16
}

// HPAI is a Host Protocol Address Information block: an 8-octet endpoint
// descriptor (protocol code, IPv4 address, port).
type HPAI struct {
	IP   net.IP
	Port uint16
}

func encodeHPAI(h HPAI) ([]byte, error) {
	ip4 := h.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: HPAI requires an IPv4 address, got %v", ErrFrameEncode, h.IP)
	}
	buf := make([]byte, hpaiFixedLen)
	buf[0] = hpaiLen
	buf[1] = HostProtocolIPv4UDP
	copy(buf[2:6], ip4)
	binary.BigEndian.PutUint16(buf[6:8], h.Port)
	return buf, nil
}

func decodeHPAI(data []byte) (HPAI, int, error) {
	if len(data) < hpaiFixedLen {
		return HPAI{}, 0, fmt.Errorf("%w: HPAI truncated (%d bytes)", ErrFrameDecode, len(data))
	}
	if data[0] != hpaiLen {
		return HPAI{}, 0, fmt.Errorf("%w: HPAI length byte must be 8, got %d", ErrFrameDecode, data[0])
	}
	if data[1] != HostProtocolIPv4UDP {
		return HPAI{}, 0, fmt.Errorf("%w: unsupported host protocol code 0x%02X", ErrFrameDecode, data[1])
	}
	ip := net.IPv4(data[2], data[3], data[4], data[5])
	port := binary.BigEndian.Uint16(data[6:8])
	return HPAI{IP: ip, Port: port}, hpaiFixedLen, nil
}

// CRI is tunnel Connection Request Information.
type CRI struct {
	KNXLayer byte // must be KNXLayerLinkLayer
}

func encodeCRI(c CRI) []byte {
	return []byte{criTunnelLen, ConnectionTypeTunnel, c.KNXLayer, 0x00}
}

func decodeCRI(data []byte) (CRI, int, error) {
	if len(data) < int(criTunnelLen) {
		return CRI{}, 0, fmt.Errorf("%w: CRI truncated (%d bytes)", ErrFrameDecode, len(data))
	}
	if data[0] != criTunnelLen {
		return CRI{}, 0, fmt.Errorf("%w: CRI length must be 4, got %d", ErrFrameDecode, data[0])
	}
	if data[1] != ConnectionTypeTunnel {
		return CRI{}, 0, fmt.Errorf("%w: unsupported connection type 0x%02X", ErrFrameDecode, data[1])
	}
	if data[2] != KNXLayerLinkLayer {
		return CRI{}, 0, fmt.Errorf("%w: unsupported KNX layer 0x%02X", ErrFrameDecode, data[2])
	}
	return CRI{KNXLayer: data[2]}, int(criTunnelLen), nil
}

// CRD is tunnel Connection Response Data: the individual address assigned
// to this tunnel by the server.
type CRD struct {
	IndividualAddress IndividualAddress
}

func encodeCRD(c CRD) []byte {
	buf := make([]byte, crdTunnelLen)
	buf[0] = crdTunnelLen
	buf[1] = ConnectionTypeTunnel
	binary.BigEndian.PutUint16(buf[2:4], c.IndividualAddress.ToUint16())
	return buf
}

func decodeCRD(data []byte) (CRD, int, error) {
	if len(data) < int(crdTunnelLen) {
		return CRD{}, 0, fmt.Errorf("%w: CRD truncated (%d bytes)", ErrFrameDecode, len(data))
	}
	if data[0] != crdTunnelLen {
		return CRD{}, 0, fmt.Errorf("%w: CRD length must be 4, got %d", ErrFrameDecode, data[0])
	}
	if data[1] != ConnectionTypeTunnel {
		return CRD{}, 0, fmt.Errorf("%w: unsupported connection type 0x%02X", ErrFrameDecode, data[1])
	}
	addr := IndividualAddressFromUint16(binary.BigEndian.Uint16(data[2:4]))
	return CRD{IndividualAddress: addr}, int(crdTunnelLen), nil
}

// ConnectRequest (0x0205).
type ConnectRequest struct {
	ControlEndpoint HPAI
	DataEndpoint    HPAI
	CRI             CRI
}

func (ConnectRequest) ServiceType() uint16 { return ServiceConnectRequest }

// ConnectResponse (0x0206). DataEndpoint and CRD are zero-valued when
// Status != StatusNoError.
type ConnectResponse struct {
	ChannelID    byte
	Status       byte
	DataEndpoint HPAI
	CRD          CRD
}

func (ConnectResponse) ServiceType() uint16 { return ServiceConnectResponse }

// ConnectionstateRequest (0x0207).
type ConnectionstateRequest struct {
	ChannelID       byte
	ControlEndpoint HPAI
}

func (ConnectionstateRequest) ServiceType() uint16 { return ServiceConnectionstateRequest }

// ConnectionstateResponse (0x0208).
type ConnectionstateResponse struct {
	ChannelID byte
	Status    byte
}

func (ConnectionstateResponse) ServiceType() uint16 { return ServiceConnectionstateResponse }

// DisconnectRequest (0x0209).
type DisconnectRequest struct {
	ChannelID       byte
	ControlEndpoint HPAI
}

func (DisconnectRequest) ServiceType() uint16 { return ServiceDisconnectRequest }

// DisconnectResponse (0x020A).
type DisconnectResponse struct {
	ChannelID byte
	Status    byte
}

func (DisconnectResponse) ServiceType() uint16 { return ServiceDisconnectResponse }

// TunnellingRequest (0x0420).
type TunnellingRequest struct {
	ChannelID byte
	Seq       byte
	Telegram  []byte // raw cEMI bytes, see telegram.go
}

func (TunnellingRequest) ServiceType() uint16 { return ServiceTunnellingRequest }

// TunnellingAck (0x0421).
type TunnellingAck struct {
	ChannelID byte
	Seq       byte
	Status    byte
}

func (TunnellingAck) ServiceType() uint16 { return ServiceTunnellingAck }

// UnknownFrame carries an unrecognized service type and its raw body, so
// the caller can log and continue rather than fail decoding outright, per
// §4.5's "unknown service types are reported, not ignored".
type UnknownFrame struct {
	Service uint16
	Body    []byte
}

func (u UnknownFrame) ServiceType() uint16 { return u.Service }

// EncodeFrame composes the 6-byte KNXnet/IP header and the service-specific
// body for f.
func EncodeFrame(f Frame) ([]byte, error) {
	var body []byte
	var err error

	switch v := f.(type) {
	case ConnectRequest:
		body, err = encodeConnectRequest(v)
	case ConnectResponse:
		body, err = encodeConnectResponse(v)
	case ConnectionstateRequest:
		body, err = encodeConnectionstateRequest(v)
	case ConnectionstateResponse:
		body = []byte{v.ChannelID, v.Status}
	case DisconnectRequest:
		body, err = encodeDisconnectRequest(v)
	case DisconnectResponse:
		body = []byte{v.ChannelID, v.Status}
	case TunnellingRequest:
		body = encodeTunnellingRequest(v)
	case TunnellingAck:
		body = []byte{tunnellingHdrLen, v.ChannelID, v.Seq, v.Status}
	default:
		return nil, fmt.Errorf("%w: unsupported frame type %T", ErrFrameEncode, f)
	}
	if err != nil {
		return nil, err
	}

	totalLen := headerLen + len(body)
	if totalLen > 0xFFFF {
		return nil, fmt.Errorf("%w: frame too large (%d bytes)", ErrFrameEncode, totalLen)
	}

	out := make([]byte, headerLen, totalLen)
	out[0] = headerSize
	out[1] = protocolVer10
	binary.BigEndian.PutUint16(out[2:4], f.ServiceType())
	binary.BigEndian.PutUint16(out[4:6], uint16(totalLen)) //nolint:gosec // bounded above
	out = append(out, body...)
	return out, nil
}

func encodeConnectRequest(v ConnectRequest) ([]byte, error) {
	ctrl, err := encodeHPAI(v.ControlEndpoint)
	if err != nil {
		return nil, err
	}
	data, err := encodeHPAI(v.DataEndpoint)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, len(ctrl)+len(data)+4)
	body = append(body, ctrl...)
	body = append(body, data...)
	body = append(body, encodeCRI(v.CRI)...)
	return body, nil
}

func encodeConnectResponse(v ConnectResponse) ([]byte, error) {
	if v.Status != StatusNoError {
		return []byte{v.ChannelID, v.Status}, nil
	}
	data, err := encodeHPAI(v.DataEndpoint)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 2+len(data)+4)
	body = append(body, v.ChannelID, v.Status)
	body = append(body, data...)
	body = append(body, encodeCRD(v.CRD)...)
	return body, nil
}

func encodeConnectionstateRequest(v ConnectionstateRequest) ([]byte, error) {
	ctrl, err := encodeHPAI(v.ControlEndpoint)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 2+len(ctrl))
	body = append(body, v.ChannelID, 0x00)
	body = append(body, ctrl...)
	return body, nil
}

func encodeDisconnectRequest(v DisconnectRequest) ([]byte, error) {
	ctrl, err := encodeHPAI(v.ControlEndpoint)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 2+len(ctrl))
	body = append(body, v.ChannelID, 0x00)
	body = append(body, ctrl...)
	return body, nil
}

func encodeTunnellingRequest(v TunnellingRequest) []byte {
	body := make([]byte, 0, 4+len(v.Telegram))
	body = append(body, tunnellingHdrLen, v.ChannelID, v.Seq, 0x00)
	body = append(body, v.Telegram...)
	return body
}

// DecodeFrame parses a complete KNXnet/IP frame (header + body) from data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: frame shorter than header (%d bytes)", ErrFrameDecode, len(data))
	}
	if data[0] != headerSize {
		return nil, fmt.Errorf("%w: header_size must be 0x06, got 0x%02X", ErrFrameDecode, data[0])
	}
	if data[1] != protocolVer10 {
		return nil, fmt.Errorf("%w: version must be 0x10, got 0x%02X", ErrFrameDecode, data[1])
	}

	service := binary.BigEndian.Uint16(data[2:4])
	totalLen := binary.BigEndian.Uint16(data[4:6])
	if totalLen < headerLen {
		return nil, fmt.Errorf("%w: declared total_length %d shorter than header", ErrFrameDecode, totalLen)
	}
	if len(data) < int(totalLen) {
		return nil, fmt.Errorf("%w: body shorter than declared total_length (have %d, want %d)",
			ErrFrameDecode, len(data), totalLen)
	}
	body := data[headerLen:totalLen]

	switch service {
	case ServiceConnectRequest:
		return decodeConnectRequest(body)
	case ServiceConnectResponse:
		return decodeConnectResponse(body)
	case ServiceConnectionstateRequest:
		return decodeConnectionstateRequest(body)
	case ServiceConnectionstateResponse:
		return decodeConnectionstateResponse(body)
	case ServiceDisconnectRequest:
		return decodeDisconnectRequest(body)
	case ServiceDisconnectResponse:
		return decodeDisconnectResponse(body)
	case ServiceTunnellingRequest:
		return decodeTunnellingRequest(body)
	case ServiceTunnellingAck:
		return decodeTunnellingAck(body)
	default:
		return UnknownFrame{Service: service, Body: append([]byte(nil), body...)}, nil
	}
}

func decodeConnectRequest(body []byte) (Frame, error) {
	ctrl, n, err := decodeHPAI(body)
	if err != nil {
		return nil, err
	}
	data, n2, err := decodeHPAI(body[n:])
	if err != nil {
		return nil, err
	}
	cri, _, err := decodeCRI(body[n+n2:])
	if err != nil {
		return nil, err
	}
	return ConnectRequest{ControlEndpoint: ctrl, DataEndpoint: data, CRI: cri}, nil
}

func decodeConnectResponse(body []byte) (Frame, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: CONNECT_RESPONSE truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	channelID, status := body[0], body[1]
	if status != StatusNoError {
		return ConnectResponse{ChannelID: channelID, Status: status}, nil
	}
	data, n, err := decodeHPAI(body[2:])
	if err != nil {
		return nil, err
	}
	crd, _, err := decodeCRD(body[2+n:])
	if err != nil {
		return nil, err
	}
	return ConnectResponse{ChannelID: channelID, Status: status, DataEndpoint: data, CRD: crd}, nil
}

func decodeConnectionstateRequest(body []byte) (Frame, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: CONNECTIONSTATE_REQUEST truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	ctrl, _, err := decodeHPAI(body[2:])
	if err != nil {
		return nil, err
	}
	return ConnectionstateRequest{ChannelID: body[0], ControlEndpoint: ctrl}, nil
}

func decodeConnectionstateResponse(body []byte) (Frame, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: CONNECTIONSTATE_RESPONSE truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	return ConnectionstateResponse{ChannelID: body[0], Status: body[1]}, nil
}

func decodeDisconnectRequest(body []byte) (Frame, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: DISCONNECT_REQUEST truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	ctrl, _, err := decodeHPAI(body[2:])
	if err != nil {
		return nil, err
	}
	return DisconnectRequest{ChannelID: body[0], ControlEndpoint: ctrl}, nil
}

func decodeDisconnectResponse(body []byte) (Frame, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: DISCONNECT_RESPONSE truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	return DisconnectResponse{ChannelID: body[0], Status: body[1]}, nil
}

func decodeTunnellingRequest(body []byte) (Frame, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: TUNNELLING_REQUEST truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	if body[0] != tunnellingHdrLen {
		return nil, fmt.Errorf("%w: TUNNELLING_REQUEST header length must be 4, got %d", ErrFrameDecode, body[0])
	}
	telegram := append([]byte(nil), body[4:]...)
	return TunnellingRequest{ChannelID: body[1], Seq: body[2], Telegram: telegram}, nil
}

func decodeTunnellingAck(body []byte) (Frame, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: TUNNELLING_ACK truncated (%d bytes)", ErrFrameDecode, len(body))
	}
	if body[0] != tunnellingHdrLen {
		return nil, fmt.Errorf("%w: TUNNELLING_ACK header length must be 4, got %d", ErrFrameDecode, body[0])
	}
	return TunnellingAck{ChannelID: body[1], Seq: body[2], Status: body[3]}, nil
}
