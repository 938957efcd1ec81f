package knx

import (
	"bytes"
	"testing"
)

// ─── DecodeTelegram ───────────────────────────────────────────────────

func TestDecodeTelegram(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Telegram
		wantErr bool
	}{
		{
			name: "write 1-bit true to 1/2/3 (inline)",
			// L_Data.ind, no add-info, ctrl1/ctrl2, src=1.1.1, dst=1/2/3,
			// data_length=1, TPCI=0x00, APCI(write)|1 = 0x81
			data: []byte{0x29, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x0A, 0x03, 0x01, 0x00, 0x81},
			want: Telegram{
				Type:        TelegramIndication,
				Source:      IndividualAddress{Area: 1, Line: 1, Device: 1},
				Destination: GroupAddress{Main: 1, Middle: 2, Sub: 3},
				Service:     APCIGroupWrite,
				Value:       []byte{0x01},
			},
		},
		{
			name: "read request to 6/0/1",
			data: []byte{0x29, 0x00, 0xBC, 0xE0, 0x00, 0x01, 0x30, 0x01, 0x01, 0x00, 0x00},
			want: Telegram{
				Type:        TelegramIndication,
				Source:      IndividualAddress{Area: 0, Line: 0, Device: 1},
				Destination: GroupAddress{Main: 6, Middle: 0, Sub: 1},
				Service:     APCIGroupRead,
				Value:       nil,
			},
		},
		{
			name: "2-byte write (S2 scenario)",
			// 29 00 BC E0 11 01 00 03 03 00 80 19 17
			data: []byte{0x29, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x00, 0x03, 0x03, 0x00, 0x80, 0x19, 0x17},
			want: Telegram{
				Type:        TelegramIndication,
				Source:      IndividualAddress{Area: 1, Line: 1, Device: 1},
				Destination: GroupAddress{Main: 0, Middle: 0, Sub: 3},
				Service:     APCIGroupWrite,
				Value:       []byte{0x19, 0x17},
			},
		},
		{
			name:    "too short",
			data:    []byte{0x29, 0x00},
			wantErr: true,
		},
		{
			name:    "unknown message code",
			data:    []byte{0xFF, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x0A, 0x03, 0x01, 0x00, 0x81},
			wantErr: true,
		},
		{
			name:    "unknown APCI",
			data:    []byte{0x29, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x0A, 0x03, 0x01, 0x03, 0xC0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTelegram(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Errorf("DecodeTelegram() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTelegram() unexpected error: %v", err)
			}
			if got.Type != tt.want.Type || got.Source != tt.want.Source ||
				got.Destination != tt.want.Destination || got.Service != tt.want.Service {
				t.Errorf("DecodeTelegram() = %+v, want %+v", got, tt.want)
			}
			if !bytes.Equal(got.Value, tt.want.Value) {
				t.Errorf("Value = %X, want %X", got.Value, tt.want.Value)
			}
		})
	}
}

// ─── EncodeTelegram ───────────────────────────────────────────────────

func TestEncodeTelegram(t *testing.T) {
	tg := Telegram{
		Type:        TelegramRequest,
		Destination: GroupAddress{Main: 0, Middle: 0, Sub: 3},
		Service:     APCIGroupWrite,
		Value:       []byte{0x19, 0x17},
	}

	got, err := EncodeTelegram(tg)
	if err != nil {
		t.Fatalf("EncodeTelegram() error = %v", err)
	}

	// S2: 11 00 BC E0 00 00 00 03 03 00 80 19 17 (source zero, request code)
	want := []byte{0x11, 0x00, 0xBC, 0xE0, 0x00, 0x00, 0x00, 0x03, 0x03, 0x00, 0x80, 0x19, 0x17}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTelegram() = %X, want %X", got, want)
	}
}

func TestEncodeTelegram_InlineValue(t *testing.T) {
	tg := NewWriteTelegram(GroupAddress{Main: 1, Middle: 2, Sub: 3}, []byte{0x01})
	got, err := EncodeTelegram(tg)
	if err != nil {
		t.Fatalf("EncodeTelegram() error = %v", err)
	}
	// data_length=1, TPCI=0x00, APCI|value = 0x81
	want := []byte{0x11, 0x00, 0xBC, 0xE0, 0x00, 0x00, 0x0A, 0x03, 0x01, 0x00, 0x81}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTelegram() = %X, want %X", got, want)
	}
}

func TestEncodeTelegram_Read(t *testing.T) {
	tg := NewReadTelegram(GroupAddress{Main: 6, Middle: 0, Sub: 1})
	got, err := EncodeTelegram(tg)
	if err != nil {
		t.Fatalf("EncodeTelegram() error = %v", err)
	}
	want := []byte{0x11, 0x00, 0xBC, 0xE0, 0x00, 0x00, 0x30, 0x01, 0x01, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTelegram() = %X, want %X", got, want)
	}
}

func TestEncodeTelegram_PayloadTooLarge(t *testing.T) {
	tg := NewWriteTelegram(GroupAddress{Main: 1, Middle: 1, Sub: 1}, make([]byte, maxTPDUPayload+1))
	if _, err := EncodeTelegram(tg); err == nil {
		t.Error("EncodeTelegram() expected error for oversized payload")
	}
}

// ─── Round trip ────────────────────────────────────────────────────────

func TestTelegramRoundTrip(t *testing.T) {
	tests := []Telegram{
		NewWriteTelegram(GroupAddress{Main: 1, Middle: 2, Sub: 3}, []byte{0x01}),
		NewReadTelegram(GroupAddress{Main: 6, Middle: 0, Sub: 1}),
		NewResponseTelegram(GroupAddress{Main: 5, Middle: 0, Sub: 1}, []byte{0x0C, 0x66}),
		NewWriteTelegram(GroupAddress{Main: 3, Middle: 0, Sub: 5}, []byte{0xFF, 0x80, 0x00}),
	}

	for _, tg := range tests {
		encoded, err := EncodeTelegram(tg)
		if err != nil {
			t.Fatalf("EncodeTelegram(%v) error: %v", tg, err)
		}
		decoded, err := DecodeTelegram(encoded)
		if err != nil {
			t.Fatalf("DecodeTelegram() error: %v", err)
		}
		if decoded.Destination != tg.Destination || decoded.Service != tg.Service {
			t.Errorf("round trip mismatch: got %+v, want %+v", decoded, tg)
		}
		if !bytes.Equal(decoded.Value, tg.Value) {
			t.Errorf("round trip value mismatch: got %X, want %X", decoded.Value, tg.Value)
		}
	}
}

// ─── Helpers ───────────────────────────────────────────────────────────

func TestTelegramHelpers(t *testing.T) {
	t.Run("IsWrite", func(t *testing.T) {
		tg := Telegram{Service: APCIGroupWrite}
		if !tg.IsWrite() {
			t.Error("IsWrite() = false, want true")
		}
	})
	t.Run("IsRead", func(t *testing.T) {
		tg := Telegram{Service: APCIGroupRead}
		if !tg.IsRead() {
			t.Error("IsRead() = false, want true")
		}
	})
	t.Run("IsResponse", func(t *testing.T) {
		tg := Telegram{Service: APCIGroupResponse}
		if !tg.IsResponse() {
			t.Error("IsResponse() = false, want true")
		}
	})
	t.Run("String", func(t *testing.T) {
		tg := NewWriteTelegram(GroupAddress{Main: 1, Middle: 2, Sub: 3}, []byte{0x01})
		s := tg.String()
		if s == "" {
			t.Error("String() returned empty string")
		}
	})
}
