package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"viva/encoder"
)

type RecorderMode int

const (
	// ModeAnswer buffers raw PCM and yields a single WAV blob on Stop.
	ModeAnswer RecorderMode = iota
	// ModeContinuous emits an encoded segment on a fixed interval while
	// recording, plus a final segment on Stop.
	ModeContinuous
)

type RecorderConfig struct {
	Mode            RecorderMode
	SegmentInterval time.Duration              // continuous mode; zero means 2s
	OnSegment       func(seq int, data []byte) // continuous mode, called off the capture callback
	OnLevel         func(rms float64)          // optional level meter tap
	OnPCM           func(data []byte)          // optional raw PCM tap (VAD)
}

const defaultSegmentInterval = 2 * time.Second

// Recorder owns one acquired capture device for the duration of a
// recording. Stop is idempotent and always releases the device.
type Recorder struct {
	capture CaptureDevice
	cfg     RecorderConfig
	flac    *encoder.FlacEncoder

	mu          sync.Mutex
	sampleBuf   []int16
	pcmBuf      []byte
	totalFrames uint64
	started     bool
	stopped     bool
	blob        []byte
	stopErr     error

	seq      int
	flacSent int // bytes of flac output already emitted

	tickStop chan struct{}
	tickDone chan struct{}
}

// NewRecorder acquires the capture device. Failure to acquire is reported
// as ErrPermissionDenied: on every platform backend it means the device is
// missing, busy, or access was refused.
func NewRecorder(ctx Context, device *DeviceInfo, cfg RecorderConfig) (*Recorder, error) {
	if cfg.SegmentInterval <= 0 {
		cfg.SegmentInterval = defaultSegmentInterval
	}

	capture, err := ctx.NewCapture(device, CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r := &Recorder{capture: capture, cfg: cfg}

	if cfg.Mode == ModeContinuous {
		enc, err := encoder.NewFlac()
		if err != nil {
			capture.Close()
			return nil, err
		}
		r.flac = enc
	}
	return r, nil
}

func (r *Recorder) DeviceName() string {
	return r.capture.DeviceName()
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("recorder already stopped")
	}
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("recorder already started")
	}
	r.started = true
	r.mu.Unlock()

	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.capture.Close()
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	if r.cfg.Mode == ModeContinuous {
		r.tickStop = make(chan struct{})
		r.tickDone = make(chan struct{})
		go r.segmentLoop()
	}
	return nil
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.totalFrames += uint64(frameCount)
	switch r.cfg.Mode {
	case ModeAnswer:
		r.pcmBuf = append(r.pcmBuf, data...)
	case ModeContinuous:
		for i := 0; i+1 < len(data); i += 2 {
			r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
		}
	}
	r.mu.Unlock()

	if r.cfg.OnPCM != nil {
		r.cfg.OnPCM(data)
	}
	if r.cfg.OnLevel != nil && len(data) > 1 {
		var sumSquares float64
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(data[i:]))
			normalized := float64(sample) / 32768.0
			sumSquares += normalized * normalized
		}
		r.cfg.OnLevel(math.Sqrt(sumSquares / float64(len(data)/2)))
	}
}

func (r *Recorder) segmentLoop() {
	defer close(r.tickDone)
	ticker := time.NewTicker(r.cfg.SegmentInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.tickStop:
			return
		case <-ticker.C:
			r.flushSegment(false)
		}
	}
}

// flushSegment encodes buffered samples and emits any new encoder output.
// Only the final flush may encode a partial block: the flac stream is
// declared with a fixed block size.
func (r *Recorder) flushSegment(final bool) {
	r.mu.Lock()
	var blocks [][]int16
	for len(r.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, r.sampleBuf[:encoder.BlockSize])
		r.sampleBuf = r.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	if final && len(r.sampleBuf) > 0 {
		partial := make([]int16, len(r.sampleBuf))
		copy(partial, r.sampleBuf)
		r.sampleBuf = nil
		blocks = append(blocks, partial)
	}
	r.mu.Unlock()

	for _, block := range blocks {
		if err := r.flac.EncodeBlock(block); err != nil {
			return
		}
	}
	if final {
		r.flac.Close()
	}

	out := r.flac.Bytes()
	if len(out) > r.flacSent && r.cfg.OnSegment != nil {
		r.seq++
		segment := make([]byte, len(out)-r.flacSent)
		copy(segment, out[r.flacSent:])
		r.flacSent = len(out)
		r.cfg.OnSegment(r.seq, segment)
	}
}

// Stop halts capture, releases the device, and returns the recording.
// Answer mode returns the WAV blob; continuous mode returns nil after the
// final segment has been emitted. Safe to call more than once: later
// calls return the first call's result without touching the device again.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.stopped {
		blob, err := r.blob, r.stopErr
		r.mu.Unlock()
		return blob, err
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	if started {
		r.capture.Stop()
	}
	r.capture.ClearCallback()
	r.capture.Close()

	var blob []byte
	var err error
	switch r.cfg.Mode {
	case ModeAnswer:
		r.mu.Lock()
		pcm := r.pcmBuf
		r.pcmBuf = nil
		r.mu.Unlock()
		blob = encoder.WAVBytes(pcm)
	case ModeContinuous:
		if started {
			close(r.tickStop)
			<-r.tickDone
		}
		r.flushSegment(true)
	}

	r.mu.Lock()
	r.blob, r.stopErr = blob, err
	r.mu.Unlock()
	return blob, err
}

// Duration reports the captured audio length so far.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	frames := r.totalFrames
	r.mu.Unlock()
	return time.Duration(float64(frames) / float64(encoder.SampleRate) * float64(time.Second))
}
