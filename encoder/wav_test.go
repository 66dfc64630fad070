package encoder

import (
	"encoding/binary"
	"testing"
)

func TestWAVBytesHeader(t *testing.T) {
	pcm := make([]byte, 320) // 10ms at 16kHz mono 16-bit
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav := WAVBytes(pcm)

	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), wavHeaderSize+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != Channels {
		t.Errorf("channels = %d, want %d", got, Channels)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
	for i := range pcm {
		if wav[wavHeaderSize+i] != pcm[i] {
			t.Fatalf("payload byte %d = %d, want %d", i, wav[wavHeaderSize+i], pcm[i])
		}
	}
}

func TestWAVBytesEmpty(t *testing.T) {
	wav := WAVBytes(nil)
	if len(wav) != wavHeaderSize {
		t.Fatalf("len = %d, want %d", len(wav), wavHeaderSize)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("data length = %d, want 0", got)
	}
}
