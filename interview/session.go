package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"viva/audio"
	"viva/beep"
	"viva/encoder"
	"viva/log"
	"viva/narrator"
	"viva/upload"
)

// ErrEmptyTranscription reports a finished answer upload whose
// transcription came back blank. It follows the same retry path as an
// upload failure.
var ErrEmptyTranscription = errors.New("empty transcription")

const introText = "Hello, and thank you for joining me today. My name is Chitti, and I'm part of the hiring team for this teaching position. We're excited to learn more about your expertise and teaching philosophy."

const closingText = "Thank you for taking the time to interview. We appreciate your interest in Vibgyor Group of Schools and will be in touch regarding the next steps soon."

type Config struct {
	CountdownSeconds int           // before each answer recording, default 4
	RetryDelay       time.Duration // pause before a retry recording, default 3s
	MaxRetries       int           // recording attempts per question, default 3
	SegmentInterval  time.Duration // continuous recording timeslice, default 2s

	// NewFileID generates the per-answer upload token. Defaults to
	// uuid.NewString.
	NewFileID func() string
}

func (c *Config) applyDefaults() {
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 4
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 3 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.NewFileID == nil {
		c.NewFileID = uuid.NewString
	}
}

// session is the single live interview's mutable state. Owned by the
// controller; mutated only inside Run.
type session struct {
	topic         string
	question      string
	number        int
	transcription string
	finished      bool
}

// Controller drives the interview: narrate, count down, record, upload,
// submit, loop. It owns the continuous recording for the whole session
// and guarantees both capture handles are released on every exit path.
type Controller struct {
	client   *Client
	answers  *upload.AnswerUploader
	stream   *upload.StreamUploader
	audioCtx audio.Context
	device   *audio.DeviceInfo
	voice    narrator.Narrator
	sink     Sink
	cfg      Config

	stopMu sync.Mutex
	stopCh chan struct{}
}

func NewController(client *Client, answers *upload.AnswerUploader, stream *upload.StreamUploader,
	audioCtx audio.Context, device *audio.DeviceInfo, voice narrator.Narrator, sink Sink, cfg Config) *Controller {
	cfg.applyDefaults()
	if sink == nil {
		sink = NullSink{}
	}
	return &Controller{
		client:   client,
		answers:  answers,
		stream:   stream,
		audioCtx: audioCtx,
		device:   device,
		voice:    voice,
		sink:     sink,
		cfg:      cfg,
	}
}

// StopAnswer ends the current answer recording, if one is active.
func (c *Controller) StopAnswer() {
	c.stopMu.Lock()
	if c.stopCh != nil {
		select {
		case c.stopCh <- struct{}{}:
		default:
		}
	}
	c.stopMu.Unlock()
}

func (c *Controller) newStop() chan struct{} {
	c.stopMu.Lock()
	ch := make(chan struct{}, 1)
	c.stopCh = ch
	c.stopMu.Unlock()
	return ch
}

func (c *Controller) clearStop() {
	c.stopMu.Lock()
	c.stopCh = nil
	c.stopMu.Unlock()
}

// Run executes the whole interview and returns after the summary is
// delivered to the sink, or on the first unrecoverable error.
func (c *Controller) Run(ctx context.Context) error {
	err := c.run(ctx)
	if err != nil {
		c.sink.SessionError(err)
	}
	return err
}

func (c *Controller) run(ctx context.Context) error {
	// Device probe: acquire and immediately release a throwaway
	// capture so permission problems surface before the server knows
	// anything about this session.
	if err := audio.Probe(c.audioCtx, c.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}); err != nil {
		return err
	}

	continuous, err := c.startContinuous()
	if err != nil {
		return err
	}
	defer func() {
		continuous.Stop()
		finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.stream.Finish(finishCtx); err != nil {
			log.Warnf("continuous stream finish: %v", err)
		}
	}()

	c.narrate(ctx, introText)

	sess := &session{}
	first, err := c.client.StartInterview(ctx)
	if err != nil {
		return err
	}
	sess.topic, sess.question = first.Topic, first.Question

	for !sess.finished {
		sess.number++
		c.sink.QuestionShown(sess.number, sess.topic, sess.question)
		log.QuestionAsked(sess.number, sess.topic, sess.question)
		c.narrate(ctx, sess.question)

		if err := c.countdown(ctx); err != nil {
			return err
		}

		transcription, err := c.recordAndTranscribe(ctx)
		if err != nil {
			return err
		}
		sess.transcription = transcription
		c.sink.TranscriptionShown(transcription)
		log.AnswerText(sess.topic, transcription)

		turn, err := c.client.NextQuestion(ctx, sess.transcription)
		if err != nil {
			return err
		}
		// Once submitted, the transcription must not survive into the
		// next turn.
		sess.transcription = ""

		// A connecting sentence replaces the fixed closing line when
		// both arrive on the final turn.
		if turn.ConnectingSentence != "" {
			c.narrate(ctx, turn.ConnectingSentence)
		} else if turn.Finished {
			c.narrate(ctx, closingText)
		}
		if turn.Finished {
			sess.finished = true
			break
		}
		sess.topic, sess.question = turn.Question.Topic, turn.Question.Question
	}

	// Finishing: the continuous capture must be released and its
	// stream finalized before the graded list is fetched.
	continuous.Stop()
	finishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = c.stream.Finish(finishCtx)
	cancel()
	if err != nil {
		log.Warnf("continuous stream finish: %v", err)
	}

	records, err := c.client.GetQuestions(ctx)
	if err != nil {
		return err
	}
	if err := log.WriteResults(records); err != nil {
		log.Warnf("could not save results: %v", err)
	}
	summary, err := c.client.EndInterview(ctx, records)
	if err != nil {
		return err
	}

	c.sink.SummaryReady(records, TopicAverages(records), summary)
	log.SessionEnd(sess.number)
	return nil
}

func (c *Controller) startContinuous() (*audio.Recorder, error) {
	rec, err := audio.NewRecorder(c.audioCtx, c.device, audio.RecorderConfig{
		Mode:            audio.ModeContinuous,
		SegmentInterval: c.cfg.SegmentInterval,
		OnSegment: func(seq int, data []byte) {
			log.StreamSegment(seq, len(data))
			c.stream.Send(seq, data)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := rec.Start(); err != nil {
		return nil, err
	}
	return rec, nil
}

// narrate speaks text and waits for playback to end. Narration failure
// is never fatal; the flow proceeds as if the line had been spoken.
func (c *Controller) narrate(ctx context.Context, text string) {
	c.sink.Narrating(text)
	if err := c.voice.Speak(ctx, text); err != nil && ctx.Err() == nil {
		log.Warnf("narration failed: %v", err)
	}
}

func (c *Controller) countdown(ctx context.Context) error {
	done := make(chan struct{})
	cd := NewCountdown()
	cd.Start(c.cfg.CountdownSeconds, c.sink.CountdownTick, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		cd.Cancel()
		return ctx.Err()
	}
}

// recordAndTranscribe records one answer and uploads it, retrying the
// recording step on a recoverable failure (blank transcription, failed
// chunk or finalization, request timeout). Retries re-enter recording
// directly: the question is not narrated again and there is no second
// countdown.
func (c *Controller) recordAndTranscribe(ctx context.Context) (string, error) {
	for attempt := 1; ; attempt++ {
		blob, err := c.recordAnswer(ctx)
		if err != nil {
			return "", err
		}

		c.sink.Uploading()
		fileID := c.cfg.NewFileID()
		transcription, stats, err := c.answers.Upload(ctx, blob, fileID)
		if err == nil && strings.TrimSpace(transcription) == "" {
			err = ErrEmptyTranscription
		}
		if err == nil {
			audioBytes := len(blob) - audio.WAVHeaderSize
			if audioBytes < 0 {
				audioBytes = 0
			}
			log.AnswerUpload(log.UploadMetrics{
				AudioLengthS: float64(audioBytes/2) / float64(encoder.SampleRate),
				BlobKB:       float64(stats.BlobBytes) / 1024,
				Chunks:       stats.Chunks,
				DNSTimeMs:    stats.DNSTimeMs,
				TLSTimeMs:    stats.TLSTimeMs,
				TTFBMs:       stats.TTFBMs,
				TotalTimeMs:  stats.TotalTimeMs,
			})
			return transcription, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !recoverable(err) {
			return "", err
		}
		if attempt >= c.cfg.MaxRetries {
			return "", fmt.Errorf("answer not captured after %d attempts: %w", attempt, err)
		}

		log.Retry(attempt, c.cfg.MaxRetries, err.Error())
		c.sink.RetryNotice(attempt, c.cfg.MaxRetries, retryReason(err))
		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func recoverable(err error) bool {
	return errors.Is(err, ErrEmptyTranscription) ||
		errors.Is(err, upload.ErrChunkUploadFailed) ||
		errors.Is(err, upload.ErrUploadFinalizationFailed) ||
		errors.Is(err, upload.ErrRequestTimedOut)
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyTranscription):
		return "no speech detected, please answer again"
	case errors.Is(err, upload.ErrRequestTimedOut):
		return "request timed out, recording again"
	default:
		return "upload failed, recording again"
	}
}

// recordAnswer captures one answer until the candidate stops it, 30
// seconds of silence end it, or the context is cancelled. The capture
// device is released on every path out.
func (c *Controller) recordAnswer(ctx context.Context) ([]byte, error) {
	vd, err := newVoiceDetector()
	if err != nil {
		return nil, fmt.Errorf("voice detection init: %w", err)
	}

	rec, err := audio.NewRecorder(c.audioCtx, c.device, audio.RecorderConfig{
		Mode:    audio.ModeAnswer,
		OnLevel: c.sink.AudioLevel,
		OnPCM:   vd.Process,
	})
	if err != nil {
		return nil, err
	}

	stop := c.newStop()
	defer c.clearStop()

	if err := rec.Start(); err != nil {
		rec.Stop()
		return nil, err
	}

	c.sink.RecordingStart()
	go beep.PlayStart()
	log.Info("recording_start: " + rec.DeviceName())

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	mon := newSilenceMonitor()
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.sink.RecordingTick(rec.Duration().Seconds())
				switch mon.Tick(vd.HasSpeechTick()) {
				case SilenceWarn:
					log.Info("no_voice_warning")
					c.sink.NoVoiceWarning()
					beep.PlayError()
				case SilenceWarnClear:
					c.sink.VoiceCleared()
				case SilenceRepeat:
					log.Info("silence_during_warning")
					c.sink.NoVoiceWarning()
					beep.PlayError()
				case SilenceAutoStop:
					log.Info("silence_auto_stop")
					closeDone()
					return
				}
			}
		}
	}()

	go func() {
		select {
		case <-stop:
		case <-ctx.Done():
		case <-done:
			return
		}
		closeDone()
	}()
	<-done

	c.sink.RecordingStop()
	go beep.PlayEnd()
	if vd.VoiceDetected() {
		log.Info("recording_stop")
	} else {
		log.Info("recording_stop: no confirmed speech")
	}

	blob, err := rec.Stop()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return blob, nil
}
