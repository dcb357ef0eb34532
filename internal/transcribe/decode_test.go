package transcribe

import (
	"bytes"
	"testing"
)

// oggTestPage assembles a single Ogg page from a lacing table and a
// body. The checksum is left zero; the packet splitter does not verify
// it.
func oggTestPage(lacing []byte, body []byte) []byte {
	page := make([]byte, 0, 27+len(lacing)+len(body))
	page = append(page, 'O', 'g', 'g', 'S')
	page = append(page, make([]byte, 22)...)
	page = append(page, byte(len(lacing)))
	page = append(page, lacing...)
	return append(page, body...)
}

func TestOggPacketsMultiplePacketsPerPage(t *testing.T) {
	body := []byte{1, 2, 3, 10, 20, 30, 40}
	data := oggTestPage([]byte{3, 4}, body)

	packets, err := oggPackets(data)
	if err != nil {
		t.Fatalf("oggPackets() error = %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("len(packets) = %d, want 2", len(packets))
	}
	if !bytes.Equal(packets[0], []byte{1, 2, 3}) {
		t.Errorf("packets[0] = %v, want [1 2 3]", packets[0])
	}
	if !bytes.Equal(packets[1], []byte{10, 20, 30, 40}) {
		t.Errorf("packets[1] = %v, want [10 20 30 40]", packets[1])
	}
}

func TestOggPacketsPacketSpansPages(t *testing.T) {
	packet := make([]byte, 300)
	for i := range packet {
		packet[i] = byte(i)
	}
	data := oggTestPage([]byte{255}, packet[:255])
	data = append(data, oggTestPage([]byte{45}, packet[255:])...)

	packets, err := oggPackets(data)
	if err != nil {
		t.Fatalf("oggPackets() error = %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("len(packets) = %d, want 1", len(packets))
	}
	if !bytes.Equal(packets[0], packet) {
		t.Errorf("reassembled packet = %d bytes, want %d", len(packets[0]), len(packet))
	}
}

func TestOggPacketsOnePacketPerPage(t *testing.T) {
	data := oggTestPage([]byte{5}, []byte{1, 2, 3, 4, 5})
	data = append(data, oggTestPage([]byte{2}, []byte{6, 7})...)

	packets, err := oggPackets(data)
	if err != nil {
		t.Fatalf("oggPackets() error = %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("len(packets) = %d, want 2", len(packets))
	}
	if !bytes.Equal(packets[0], []byte{1, 2, 3, 4, 5}) {
		t.Errorf("packets[0] = %v, want [1 2 3 4 5]", packets[0])
	}
	if !bytes.Equal(packets[1], []byte{6, 7}) {
		t.Errorf("packets[1] = %v, want [6 7]", packets[1])
	}
}

func TestOggPacketsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad capture pattern", []byte("NotAnOggStreamAtAllPadding!")},
		{"truncated header", []byte("OggS")},
		{"truncated segment table", oggTestPage([]byte{10, 10}, nil)[:28]},
		{"truncated body", oggTestPage([]byte{10}, []byte{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := oggPackets(tt.data); err == nil {
				t.Error("oggPackets() error = nil, want error")
			}
		})
	}
}
