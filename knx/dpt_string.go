package knx

import "fmt"

// ─── DPT4 (1-byte character: ASCII or Latin-1) ───────────────────────

// EncodeDPT4ASCII encodes a 7-bit ASCII character (DPT 4.001).
func EncodeDPT4ASCII(r rune) ([]byte, error) {
	if r < 0 || r > 127 {
		return nil, fmt.Errorf("%w: DPT4.001 requires a 7-bit ASCII character, got %q", ErrDatapointFormat, r)
	}
	return []byte{byte(r)}, nil
}

// DecodeDPT4ASCII decodes a 7-bit ASCII character.
func DecodeDPT4ASCII(data []byte) (rune, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT4.001 requires 1 byte, got %d", ErrDatapointDecode, len(data))
	}
	return rune(data[0] & 0x7F), nil
}

// EncodeDPT4Latin1 encodes an ISO-8859-1 character (DPT 4.002).
func EncodeDPT4Latin1(r rune) ([]byte, error) {
	if r < 0 || r > 255 {
		return nil, fmt.Errorf("%w: DPT4.002 requires a Latin-1 character, got %q", ErrDatapointFormat, r)
	}
	return []byte{byte(r)}, nil
}

// DecodeDPT4Latin1 decodes an ISO-8859-1 character.
func DecodeDPT4Latin1(data []byte) (rune, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT4.002 requires 1 byte, got %d", ErrDatapointDecode, len(data))
	}
	return rune(data[0]), nil
}

func encodeDPT4(value any, sub string) ([]byte, error) {
	r, ok := value.(rune)
	if !ok {
		return nil, typeMismatch(DPT("4."+sub), value, "rune")
	}
	if sub == "001" {
		return EncodeDPT4ASCII(r)
	}
	return EncodeDPT4Latin1(r)
}

func decodeDPT4(data []byte, sub string) (any, error) {
	if sub == "001" {
		return DecodeDPT4ASCII(data)
	}
	return DecodeDPT4Latin1(data)
}

// ─── DPT15 (4-byte access data: 6 BCD digits + flags + index) ───────

// DPT15Value is a DPT 15.000 access control data value: six BCD digits
// (each 0-9), four status flags, and a 4-bit index.
type DPT15Value struct {
	Digits     [6]uint8
	Detection  bool // detection error
	Permission bool // permission accepted
	Direction  bool // read(0)/write(1) direction
	Encrypted  bool
	Index      uint8 // 0-15
}

// EncodeDPT15 encodes an access control data value.
func EncodeDPT15(v DPT15Value) ([]byte, error) {
	for i, d := range v.Digits {
		if d > 9 {
			return nil, fmt.Errorf("%w: DPT15 digit %d is %d, must be 0-9", ErrDatapointRange, i, d)
		}
	}
	if v.Index > 15 {
		return nil, fmt.Errorf("%w: DPT15 index %d out of range 0-15", ErrDatapointRange, v.Index)
	}

	buf := make([]byte, 4)
	buf[0] = v.Digits[0]<<4 | v.Digits[1]
	buf[1] = v.Digits[2]<<4 | v.Digits[3]
	buf[2] = v.Digits[4]<<4 | v.Digits[5]

	var flags byte
	if v.Detection {
		flags |= 0x80
	}
	if v.Permission {
		flags |= 0x40
	}
	if v.Direction {
		flags |= 0x20
	}
	if v.Encrypted {
		flags |= 0x10
	}
	buf[3] = flags | (v.Index & 0x0F)

	return buf, nil
}

// DecodeDPT15 decodes an access control data value.
func DecodeDPT15(data []byte) (DPT15Value, error) {
	if len(data) < 4 {
		return DPT15Value{}, fmt.Errorf("%w: DPT15 requires 4 bytes, got %d", ErrDatapointDecode, len(data))
	}
	return DPT15Value{
		Digits: [6]uint8{
			data[0] >> 4, data[0] & 0x0F,
			data[1] >> 4, data[1] & 0x0F,
			data[2] >> 4, data[2] & 0x0F,
		},
		Detection:  data[3]&0x80 != 0,
		Permission: data[3]&0x40 != 0,
		Direction:  data[3]&0x20 != 0,
		Encrypted:  data[3]&0x10 != 0,
		Index:      data[3] & 0x0F,
	}, nil
}

// ─── DPT16 (14-byte fixed string: ASCII or Latin-1) ──────────────────

const dpt16Len = 14

func encodeDPT16(value string, sub string) ([]byte, error) {
	runes := []rune(value)
	if len(runes) > dpt16Len {
		return nil, fmt.Errorf("%w: DPT16 string %q exceeds %d characters", ErrDatapointFormat, value, dpt16Len)
	}

	buf := make([]byte, dpt16Len)
	ascii := sub == "000"
	for i, r := range runes {
		if ascii && r > 127 {
			return nil, fmt.Errorf("%w: DPT16.000 requires ASCII, got %q", ErrDatapointFormat, r)
		}
		if r > 255 {
			return nil, fmt.Errorf("%w: DPT16 requires Latin-1, got %q", ErrDatapointFormat, r)
		}
		buf[i] = byte(r)
	}
	return buf, nil
}

func decodeDPT16(data []byte, _ string) (string, error) {
	n := len(data)
	if n > dpt16Len {
		n = dpt16Len
	}
	end := n
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			end = i
			break
		}
	}
	runes := make([]rune, end)
	for i := 0; i < end; i++ {
		runes[i] = rune(data[i])
	}
	return string(runes), nil
}

// ─── DPT18 (1-byte scene control) ────────────────────────────────────

// DPT18Value is a DPT 18.001 scene control value.
type DPT18Value struct {
	Control bool // false = activate, true = learn/store
	Scene   uint8
}

// EncodeDPT18 encodes a scene control value.
func EncodeDPT18(v DPT18Value) ([]byte, error) {
	if v.Scene > 63 {
		return nil, fmt.Errorf("%w: DPT18 scene %d out of range 0-63", ErrDatapointRange, v.Scene)
	}
	var b byte
	if v.Control {
		b |= 0x80
	}
	b |= v.Scene & 0x3F
	return []byte{b}, nil
}

// DecodeDPT18 decodes a scene control value.
func DecodeDPT18(data []byte) (DPT18Value, error) {
	if len(data) < 1 {
		return DPT18Value{}, fmt.Errorf("%w: DPT18 requires 1 byte, got %d", ErrDatapointDecode, len(data))
	}
	return DPT18Value{
		Control: data[0]&0x80 != 0,
		Scene:   data[0] & 0x3F,
	}, nil
}
