package knx

import "fmt"

// ─── DPT10 (3-byte time of day) ──────────────────────────────────────

// DPT10Value is a DPT 10.001 time-of-day value. Day follows the KNX
// convention: 0 = no day, 1 = Monday ... 7 = Sunday.
type DPT10Value struct {
	Day    uint8
	Hour   uint8 // 0-23
	Minute uint8 // 0-59
	Second uint8 // 0-59
}

// EncodeDPT10 encodes a time-of-day value.
func EncodeDPT10(v DPT10Value) ([]byte, error) {
	if v.Day > 7 {
		return nil, fmt.Errorf("%w: DPT10 day %d out of range 0-7", ErrDatapointRange, v.Day)
	}
	if v.Hour > 23 {
		return nil, fmt.Errorf("%w: DPT10 hour %d out of range 0-23", ErrDatapointRange, v.Hour)
	}
	if v.Minute > 59 {
		return nil, fmt.Errorf("%w: DPT10 minute %d out of range 0-59", ErrDatapointRange, v.Minute)
	}
	if v.Second > 59 {
		return nil, fmt.Errorf("%w: DPT10 second %d out of range 0-59", ErrDatapointRange, v.Second)
	}
	return []byte{
		(v.Day << 5) | v.Hour,
		v.Minute,
		v.Second,
	}, nil
}

// DecodeDPT10 decodes a time-of-day value.
func DecodeDPT10(data []byte) (DPT10Value, error) {
	if len(data) < 3 {
		return DPT10Value{}, fmt.Errorf("%w: DPT10 requires 3 bytes, got %d", ErrDatapointDecode, len(data))
	}
	return DPT10Value{
		Day:    data[0] >> 5,
		Hour:   data[0] & 0x1F,
		Minute: data[1] & 0x3F,
		Second: data[2] & 0x3F,
	}, nil
}

// ─── DPT11 (3-byte date) ─────────────────────────────────────────────

// DPT11Value is a DPT 11.001 date value with a full 4-digit year.
type DPT11Value struct {
	Day   uint8 // 1-31
	Month uint8 // 1-12
	Year  int   // 1990-2089
}

// EncodeDPT11 encodes a date value. The 2-digit wire year is derived from
// the full year: 1990-1999 maps to 90-99, 2000-2089 maps to 00-89.
func EncodeDPT11(v DPT11Value) ([]byte, error) {
	if v.Day < 1 || v.Day > 31 {
		return nil, fmt.Errorf("%w: DPT11 day %d out of range 1-31", ErrDatapointRange, v.Day)
	}
	if v.Month < 1 || v.Month > 12 {
		return nil, fmt.Errorf("%w: DPT11 month %d out of range 1-12", ErrDatapointRange, v.Month)
	}

	var wireYear byte
	switch {
	case v.Year >= 2000 && v.Year <= 2089:
		wireYear = byte(v.Year - 2000)
	case v.Year >= 1990 && v.Year <= 1999:
		wireYear = byte(v.Year - 1900)
	default:
		return nil, fmt.Errorf("%w: DPT11 year %d out of range 1990-2089", ErrDatapointRange, v.Year)
	}

	return []byte{v.Day, v.Month, wireYear}, nil
}

// DecodeDPT11 decodes a date value. Wire years 90-99 are 1990-1999; wire
// years 00-89 are 2000-2089.
func DecodeDPT11(data []byte) (DPT11Value, error) {
	if len(data) < 3 {
		return DPT11Value{}, fmt.Errorf("%w: DPT11 requires 3 bytes, got %d", ErrDatapointDecode, len(data))
	}

	wireYear := data[2] & 0x7F
	var year int
	if wireYear >= 90 {
		year = 1900 + int(wireYear)
	} else {
		year = 2000 + int(wireYear)
	}

	return DPT11Value{
		Day:   data[0] & 0x1F,
		Month: data[1] & 0x0F,
		Year:  year,
	}, nil
}
