package knx

import (
	"encoding/binary"
	"fmt"
)

// cEMI control field constants (C4). ctrl1/ctrl2 are fixed for this spec:
// standard frame, no repeat flag inspection, group destination, hop count 6.
const (
	ctrl1Standard byte = 0xBC
	ctrl2Group    byte = 0xE0

	// cEMI header fixed fields before source/destination.
	cemiFixedHeaderLen = 2 // message_code + additional_info_length

	// maxTPDUPayload is the largest N-byte payload this spec accepts
	// (cEMI data_length is a single byte, TPDU length = 1+payload).
	maxTPDUPayload = 253

	// tpciZero is the TPCI bits written for group communication: no
	// sequence control and no other TPCI bits are set.
	tpciZero byte = 0x00

	// apciLowMask isolates the low 6 bits of the second TPDU octet,
	// which double as either the inline 6-bit value or are zero when a
	// byte payload follows.
	apciLowMask = 0x3F

	// apciServiceShift places the low 2 bits of the 4-bit APCI code (which
	// is all our group_read/response/write services need) in the top bits
	// of the second TPDU octet; the high 2 bits of the 4-bit APCI code
	// live in the low 2 bits of the TPCI octet and are always zero for
	// these three services.
	apciServiceShift = 6
	apciHighBitsMask = 0x03
)

// TelegramType distinguishes the three cEMI message codes this spec
// supports.
type TelegramType byte

const (
	TelegramRequest      TelegramType = TelegramType(MessageCodeLDataReq)
	TelegramIndication   TelegramType = TelegramType(MessageCodeLDataInd)
	TelegramConfirmation TelegramType = TelegramType(MessageCodeLDataCon)
)

// Telegram is a decoded KNX cEMI L_Data telegram.
type Telegram struct {
	// Type is the cEMI message code: request, indication, or confirmation.
	Type TelegramType

	// Source is the sender's individual address. Zero-valued for
	// telegrams this client constructs to send (the server fills in the
	// real source on the bus).
	Source IndividualAddress

	// Destination is the target group address.
	Destination GroupAddress

	// Service is the application service: group read, write, or response.
	Service byte

	// Value holds the payload. When len(Value) == 0 this is a read
	// request. A single-byte Value with a top-level value ≤ 0x3F is
	// carried inline in the APCI octet on the wire; any other payload
	// (including a single byte > 0x3F) is carried as an explicit byte
	// string following the APCI octet.
	Value []byte
}

// EncodeTelegram encodes a Telegram into cEMI wire bytes.
//
// Layout: message_code(1) additional_info_length(1)=0 ctrl1(1) ctrl2(1)
// source(2) destination(2) data_length(1) TPCI|APCI_high(1) APCI_low|value(1) [payload...]
func EncodeTelegram(t Telegram) ([]byte, error) {
	if len(t.Value) > maxTPDUPayload {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds maximum %d", ErrTelegramEncode, len(t.Value), maxTPDUPayload)
	}
	if _, ok := apciNames[t.Service]; !ok {
		return nil, fmt.Errorf("%w: unknown application service 0x%02X", ErrTelegramEncode, t.Service)
	}

	inline := len(t.Value) == 1 && t.Value[0] <= apciLowMask

	// N is the count of explicit payload bytes following the two TPDU
	// control octets (TPCI|APCI_high and APCI_low). Zero for a read
	// request or an inline (6-bit) value.
	n := 0
	if !inline && len(t.Value) > 0 {
		n = len(t.Value)
	}
	dataLength := 1 + n // §3/§4.4: data_length = TPDU byte length - 1

	// Fixed fields: msg_code, add_info_len, ctrl1, ctrl2, source(2),
	// destination(2), data_length byte, then the TPDU's 2 control octets
	// plus n payload bytes.
	buf := make([]byte, cemiFixedHeaderLen+2+2+2+1+2+n)

	buf[0] = byte(t.Type)
	buf[1] = 0x00 // additional_info_length
	buf[2] = ctrl1Standard
	buf[3] = ctrl2Group
	binary.BigEndian.PutUint16(buf[4:6], t.Source.ToUint16())
	binary.BigEndian.PutUint16(buf[6:8], t.Destination.ToUint16())
	buf[8] = byte(dataLength) //nolint:gosec // dataLength bounded by maxTPDUPayload+1

	tpciAPCIHigh := tpciZero | ((t.Service >> 2) & apciHighBitsMask)
	apciLowByte := (t.Service & 0x03) << apciServiceShift

	switch {
	case inline:
		buf[9] = tpciAPCIHigh
		buf[10] = apciLowByte | (t.Value[0] & apciLowMask)
	case n == 0:
		buf[9] = tpciAPCIHigh
		buf[10] = apciLowByte
	default:
		buf[9] = tpciAPCIHigh
		buf[10] = apciLowByte
		copy(buf[11:], t.Value)
	}

	return buf, nil
}

// DecodeTelegram decodes cEMI wire bytes into a Telegram.
func DecodeTelegram(data []byte) (Telegram, error) {
	if len(data) < cemiFixedHeaderLen+1 {
		return Telegram{}, fmt.Errorf("%w: too short (%d bytes)", ErrTelegramDecode, len(data))
	}

	msgCode := data[0]
	if _, ok := messageCodeNames[msgCode]; !ok {
		return Telegram{}, fmt.Errorf("%w: unknown message code 0x%02X", ErrTelegramDecode, msgCode)
	}

	addInfoLen := int(data[1])
	offset := cemiFixedHeaderLen + addInfoLen
	// ctrl1, ctrl2, source(2), destination(2), data_length(1) = 7 bytes.
	const fixedTailLen = 7
	if len(data) < offset+fixedTailLen {
		return Telegram{}, fmt.Errorf("%w: truncated before fixed fields (%d bytes)", ErrTelegramDecode, len(data))
	}

	// ctrl1/ctrl2 at offset, offset+1 are ignored per §4.4.
	srcRaw := binary.BigEndian.Uint16(data[offset+2 : offset+4])
	destRaw := binary.BigEndian.Uint16(data[offset+4 : offset+6])
	dataLength := int(data[offset+6])
	n := dataLength - 1 // explicit payload bytes beyond the 2 TPDU control octets
	if n < 0 {
		return Telegram{}, fmt.Errorf("%w: invalid data_length %d", ErrTelegramDecode, dataLength)
	}

	tpduStart := offset + fixedTailLen
	if len(data) < tpduStart+2+n {
		return Telegram{}, fmt.Errorf("%w: truncated TPDU (need %d bytes from %d, have %d)",
			ErrTelegramDecode, 2+n, tpduStart, len(data)-tpduStart)
	}

	tpci := data[tpduStart]
	apciLow := data[tpduStart+1]
	service := ((tpci & apciHighBitsMask) << 2) | (apciLow >> apciServiceShift)
	if _, ok := apciNames[service]; !ok {
		return Telegram{}, fmt.Errorf("%w: unknown APCI service 0x%02X", ErrTelegramDecode, service)
	}

	var value []byte
	if n == 0 {
		if service == APCIGroupWrite || service == APCIGroupResponse {
			value = []byte{apciLow & apciLowMask}
		}
		// APCIGroupRead with n==0 carries no value.
	} else {
		value = make([]byte, n)
		copy(value, data[tpduStart+2:tpduStart+2+n])
	}

	return Telegram{
		Type:        TelegramType(msgCode),
		Source:      IndividualAddressFromUint16(srcRaw),
		Destination: GroupAddressFromUint16(destRaw),
		Service:     service,
		Value:       value,
	}, nil
}

// IsRead returns true if this is a group read request.
func (t Telegram) IsRead() bool {
	return t.Service == APCIGroupRead
}

// IsResponse returns true if this is a group read response.
func (t Telegram) IsResponse() bool {
	return t.Service == APCIGroupResponse
}

// IsWrite returns true if this is a group write telegram.
func (t Telegram) IsWrite() bool {
	return t.Service == APCIGroupWrite
}

// String returns a human-readable representation of the telegram.
func (t Telegram) String() string {
	return fmt.Sprintf("Telegram{%s, %s->%s, %s, Value:%X}",
		MessageCodeName(byte(t.Type)), t.Source, t.Destination, APCIName(t.Service), t.Value)
}

// NewWriteTelegram builds an outbound L_Data.req group write telegram.
func NewWriteTelegram(dest GroupAddress, value []byte) Telegram {
	return Telegram{
		Type:        TelegramRequest,
		Destination: dest,
		Service:     APCIGroupWrite,
		Value:       value,
	}
}

// NewReadTelegram builds an outbound L_Data.req group read telegram.
func NewReadTelegram(dest GroupAddress) Telegram {
	return Telegram{
		Type:        TelegramRequest,
		Destination: dest,
		Service:     APCIGroupRead,
	}
}

// NewResponseTelegram builds an outbound L_Data.req group response telegram.
func NewResponseTelegram(dest GroupAddress, value []byte) Telegram {
	return Telegram{
		Type:        TelegramRequest,
		Destination: dest,
		Service:     APCIGroupResponse,
		Value:       value,
	}
}
