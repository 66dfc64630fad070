package audio

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"viva/encoder"
)

func TestRecorderAnswerBlob(t *testing.T) {
	pcm := make([]byte, 32000) // 1s of silence
	ctx := NewFakeContext(pcm, false)

	rec, err := NewRecorder(ctx, nil, RecorderConfig{Mode: ModeAnswer})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	blob, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(blob) < WAVHeaderSize+len(pcm) {
		t.Fatalf("blob size = %d, want at least %d", len(blob), WAVHeaderSize+len(pcm))
	}
	if !bytes.Equal(blob[:4], []byte("RIFF")) || !bytes.Equal(blob[8:12], []byte("WAVE")) {
		t.Errorf("blob is not a WAV container: % x", blob[:12])
	}
	if rec.Duration() < time.Second {
		t.Errorf("duration = %v, want at least 1s of captured audio", rec.Duration())
	}
}

func TestRecorderStopIdempotent(t *testing.T) {
	ctx := NewFakeContext(make([]byte, 4096), false)
	rec, err := NewRecorder(ctx, nil, RecorderConfig{Mode: ModeAnswer})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	capture := rec.capture.(*FakeCapture)

	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	second, err := rec.Stop()
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("second Stop returned a different blob")
	}
	if calls := capture.StopCalls(); calls != 1 {
		t.Errorf("device stop ran %d times, want 1", calls)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	rec, err := NewRecorder(ctx, nil, RecorderConfig{Mode: ModeAnswer})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if _, err := rec.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
	if err := rec.Start(); err == nil {
		t.Error("Start after Stop succeeded, want error")
	}
}

func TestRecorderPermissionDenied(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	ctx.FailNextCapture()
	_, err := NewRecorder(ctx, nil, RecorderConfig{Mode: ModeAnswer})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestRecorderContinuousSegments(t *testing.T) {
	// Enough samples for several full encoder blocks.
	pcm := make([]byte, encoder.BlockSize*2*6)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
	}
	ctx := NewFakeContext(pcm, false)

	var mu sync.Mutex
	var seqs []int
	var total int
	rec, err := NewRecorder(ctx, nil, RecorderConfig{
		Mode:            ModeContinuous,
		SegmentInterval: 20 * time.Millisecond,
		OnSegment: func(seq int, data []byte) {
			mu.Lock()
			seqs = append(seqs, seq)
			total += len(data)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	blob, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if blob != nil {
		t.Errorf("continuous Stop returned a blob of %d bytes, want nil", len(blob))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seqs) == 0 {
		t.Fatal("no segments emitted")
	}
	for i, seq := range seqs {
		if seq != i+1 {
			t.Errorf("segment %d has seq %d, want %d", i, seq, i+1)
		}
	}
	if total == 0 {
		t.Error("segments carried no encoded bytes")
	}
}

func TestProbeReleasesDevice(t *testing.T) {
	ctx := NewFakeContext(make([]byte, 2048), false)
	if err := Probe(ctx, nil, CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels}); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	ctx.FailNextCapture()
	if err := Probe(ctx, nil, CaptureConfig{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Probe err = %v, want ErrPermissionDenied", err)
	}
}
