package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"viva/audio"
	"viva/beep"
	"viva/narrator"
	"viva/upload"
)

func init() {
	beep.Disable()
}

// testSink records controller events. RecordingStart stops the answer
// immediately so tests never wait on the silence monitor.
type testSink struct {
	NullSink
	controller *Controller

	mu             sync.Mutex
	questions      []string
	countdownTicks int
	recordings     int
	retries        []string
	transcripts    []string
	summary        string
	averages       []TopicAverage
	records        []QuestionRecord
}

func (s *testSink) QuestionShown(number int, topic, question string) {
	s.mu.Lock()
	s.questions = append(s.questions, question)
	s.mu.Unlock()
}

func (s *testSink) CountdownTick(int) {
	s.mu.Lock()
	s.countdownTicks++
	s.mu.Unlock()
}

func (s *testSink) RecordingStart() {
	s.mu.Lock()
	s.recordings++
	s.mu.Unlock()
	s.controller.StopAnswer()
}

func (s *testSink) RetryNotice(attempt, max int, reason string) {
	s.mu.Lock()
	s.retries = append(s.retries, reason)
	s.mu.Unlock()
}

func (s *testSink) TranscriptionShown(text string) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, text)
	s.mu.Unlock()
}

func (s *testSink) SummaryReady(records []QuestionRecord, averages []TopicAverage, summary string) {
	s.mu.Lock()
	s.records = records
	s.averages = averages
	s.summary = summary
	s.mu.Unlock()
}

// interviewServer fakes the whole server side of a two-question
// interview and records the order of control-path calls.
type interviewServer struct {
	mu             sync.Mutex
	calls          []string
	transcriptions []string // popped per finish_audio_upload
	finishFailures int      // finish_audio_upload responds 500 this many times
	nextTurns      []NextTurn
	records        []QuestionRecord
	summary        string
}

func (s *interviewServer) called(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *interviewServer) callIndex(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.calls {
		if c == name {
			return i
		}
	}
	return -1
}

func (s *interviewServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/start_interview", func(w http.ResponseWriter, r *http.Request) {
		s.called("start_interview")
		json.NewEncoder(w).Encode(map[string]any{
			"question": Question{Topic: "Introduction", Question: "Tell me about yourself."},
		})
	})
	mux.HandleFunc("/upload_audio_chunk", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true}`)
	})
	mux.HandleFunc("/finish_audio_upload", func(w http.ResponseWriter, r *http.Request) {
		s.called("finish_audio_upload")
		s.mu.Lock()
		if s.finishFailures > 0 {
			s.finishFailures--
			s.mu.Unlock()
			http.Error(w, "reassembly failed", http.StatusInternalServerError)
			return
		}
		text := ""
		if len(s.transcriptions) > 0 {
			text, s.transcriptions = s.transcriptions[0], s.transcriptions[1:]
		}
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"transcription": text})
	})
	mux.HandleFunc("/next_question", func(w http.ResponseWriter, r *http.Request) {
		s.called("next_question")
		s.mu.Lock()
		var turn NextTurn
		if len(s.nextTurns) > 0 {
			turn, s.nextTurns = s.nextTurns[0], s.nextTurns[1:]
		} else {
			turn = NextTurn{Finished: true}
		}
		s.mu.Unlock()
		json.NewEncoder(w).Encode(turn)
	})
	mux.HandleFunc("/upload_video_chunk", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true}`)
	})
	mux.HandleFunc("/finish_video_upload", func(w http.ResponseWriter, r *http.Request) {
		s.called("finish_video_upload")
		fmt.Fprint(w, `{"success": true}`)
	})
	mux.HandleFunc("/get_questions", func(w http.ResponseWriter, r *http.Request) {
		s.called("get_questions")
		s.mu.Lock()
		records := s.records
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"questions": records})
	})
	mux.HandleFunc("/end_interview", func(w http.ResponseWriter, r *http.Request) {
		s.called("end_interview")
		json.NewEncoder(w).Encode(map[string]string{"summary": s.summary})
	})
	return mux
}

func newTestController(t *testing.T, srv *interviewServer, audioCtx audio.Context) (*Controller, *testSink, *narrator.Fake, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	httpClient := upload.NewTracedClient(5 * time.Second)
	voice := &narrator.Fake{}
	sink := &testSink{}
	fileSeq := 0
	ctrl := NewController(
		NewClient(httpClient, ts.URL),
		upload.NewAnswerUploader(httpClient, ts.URL, upload.DefaultChunkSize),
		upload.NewStreamUploader(httpClient, ts.URL),
		audioCtx, nil, voice, sink,
		Config{
			CountdownSeconds: 1,
			RetryDelay:       10 * time.Millisecond,
			MaxRetries:       3,
			SegmentInterval:  50 * time.Millisecond,
			NewFileID: func() string {
				fileSeq++
				return fmt.Sprintf("file-%d", fileSeq)
			},
		},
	)
	sink.controller = ctrl
	return ctrl, sink, voice, ts
}

func TestControllerFullInterview(t *testing.T) {
	srv := &interviewServer{
		transcriptions: []string{
			"I have taught mathematics for ten years.",
			"I structure lessons around guided discovery.",
		},
		nextTurns: []NextTurn{
			{
				ConnectingSentence: "That sounds like valuable experience.",
				Question:           &Question{Topic: "Pedagogy", Question: "How do you structure a lesson?"},
			},
			{Finished: true},
		},
		records: []QuestionRecord{
			{Topic: "Introduction", Question: "Tell me about yourself.", Score: "7"},
			{Topic: "Pedagogy", Question: "How do you structure a lesson?", Score: "8"},
		},
		summary: "A thoughtful candidate with a clear teaching philosophy.",
	}

	ctrl, sink, voice, _ := newTestController(t, srv, audio.NewFakeContext(make([]byte, 64000), false))
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spoken := voice.Spoken()
	wantSpoken := []string{
		introText,
		"Tell me about yourself.",
		"That sounds like valuable experience.",
		"How do you structure a lesson?",
		closingText,
	}
	if len(spoken) != len(wantSpoken) {
		t.Fatalf("narrated %d lines, want %d: %q", len(spoken), len(wantSpoken), spoken)
	}
	for i := range wantSpoken {
		if spoken[i] != wantSpoken[i] {
			t.Errorf("narration[%d] = %q, want %q", i, spoken[i], wantSpoken[i])
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.recordings != 2 {
		t.Errorf("recordings = %d, want 2", sink.recordings)
	}
	if sink.countdownTicks != 2 {
		t.Errorf("countdown ticks = %d, want 2 (one per question)", sink.countdownTicks)
	}
	if len(sink.retries) != 0 {
		t.Errorf("unexpected retries: %v", sink.retries)
	}
	if sink.summary != srv.summary {
		t.Errorf("summary = %q, want %q", sink.summary, srv.summary)
	}
	wantAverages := []TopicAverage{{Topic: "Introduction", Average: "7.00"}, {Topic: "Pedagogy", Average: "8.00"}}
	if len(sink.averages) != 2 || sink.averages[0] != wantAverages[0] || sink.averages[1] != wantAverages[1] {
		t.Errorf("averages = %v, want %v", sink.averages, wantAverages)
	}

	// The continuous stream must be finalized before the graded list is
	// fetched.
	finishIdx := srv.callIndex("finish_video_upload")
	questionsIdx := srv.callIndex("get_questions")
	if finishIdx == -1 || questionsIdx == -1 || finishIdx > questionsIdx {
		t.Errorf("finish_video_upload at %d, get_questions at %d; want stream finished first", finishIdx, questionsIdx)
	}
	if endIdx := srv.callIndex("end_interview"); endIdx < questionsIdx {
		t.Errorf("end_interview at %d before get_questions at %d", endIdx, questionsIdx)
	}
}

func TestControllerFinalConnectingSentenceReplacesClosing(t *testing.T) {
	srv := &interviewServer{
		transcriptions: []string{"I have taught mathematics for ten years."},
		nextTurns: []NextTurn{
			{ConnectingSentence: "Thanks, that wraps it up.", Finished: true},
		},
		summary: "ok",
	}

	ctrl, _, voice, _ := newTestController(t, srv, audio.NewFakeContext(make([]byte, 64000), false))
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spoken := voice.Spoken()
	wantSpoken := []string{
		introText,
		"Tell me about yourself.",
		"Thanks, that wraps it up.",
	}
	if len(spoken) != len(wantSpoken) {
		t.Fatalf("narrated %d lines, want %d: %q", len(spoken), len(wantSpoken), spoken)
	}
	for i := range wantSpoken {
		if spoken[i] != wantSpoken[i] {
			t.Errorf("narration[%d] = %q, want %q", i, spoken[i], wantSpoken[i])
		}
	}
	for _, line := range spoken {
		if line == closingText {
			t.Error("closing line narrated despite a final connecting sentence")
		}
	}
}

func TestControllerRetriesFailedUpload(t *testing.T) {
	srv := &interviewServer{
		transcriptions: []string{"I have taught mathematics for ten years."},
		finishFailures: 1,
		nextTurns:      []NextTurn{{Finished: true}},
		summary:        "ok",
	}

	ctrl, sink, voice, _ := newTestController(t, srv, audio.NewFakeContext(make([]byte, 64000), false))
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.recordings != 2 {
		t.Errorf("recordings = %d, want 2 (original + one retry)", sink.recordings)
	}
	if len(sink.retries) != 1 || sink.retries[0] != "upload failed, recording again" {
		t.Fatalf("retries = %v, want one upload-failure retry", sink.retries)
	}

	// The retry must not re-narrate the question or re-run the countdown.
	questionNarrations := 0
	for _, line := range voice.Spoken() {
		if line == "Tell me about yourself." {
			questionNarrations++
		}
	}
	if questionNarrations != 1 {
		t.Errorf("question narrated %d times, want 1", questionNarrations)
	}
	if sink.countdownTicks != 1 {
		t.Errorf("countdown ticks = %d, want 1", sink.countdownTicks)
	}
	if len(sink.transcripts) != 1 || sink.transcripts[0] != "I have taught mathematics for ten years." {
		t.Errorf("transcripts = %v, want the successful answer only", sink.transcripts)
	}
}

func TestControllerRetriesBlankTranscription(t *testing.T) {
	srv := &interviewServer{
		transcriptions: []string{"   ", "I believe in student-led learning."},
		nextTurns:      []NextTurn{{Finished: true}},
		summary:        "ok",
	}

	ctrl, sink, voice, _ := newTestController(t, srv, audio.NewFakeContext(make([]byte, 64000), false))
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.recordings != 2 {
		t.Errorf("recordings = %d, want 2 (original + one retry)", sink.recordings)
	}
	if len(sink.retries) != 1 {
		t.Fatalf("retries = %v, want exactly 1", sink.retries)
	}

	// The retry must not re-narrate the question or re-run the countdown.
	questionNarrations := 0
	for _, line := range voice.Spoken() {
		if line == "Tell me about yourself." {
			questionNarrations++
		}
	}
	if questionNarrations != 1 {
		t.Errorf("question narrated %d times, want 1", questionNarrations)
	}
	if sink.countdownTicks != 1 {
		t.Errorf("countdown ticks = %d, want 1", sink.countdownTicks)
	}
	if len(sink.transcripts) != 1 || strings.TrimSpace(sink.transcripts[0]) == "" {
		t.Errorf("transcripts = %v, want the non-blank answer only", sink.transcripts)
	}
}

func TestControllerGivesUpAfterMaxRetries(t *testing.T) {
	srv := &interviewServer{
		transcriptions: nil, // every finish returns ""
	}

	ctrl, sink, _, _ := newTestController(t, srv, audio.NewFakeContext(make([]byte, 64000), false))
	err := ctrl.Run(context.Background())
	if !errors.Is(err, ErrEmptyTranscription) {
		t.Fatalf("Run err = %v, want ErrEmptyTranscription", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.recordings != 3 {
		t.Errorf("recordings = %d, want 3 (MaxRetries)", sink.recordings)
	}
	if len(sink.retries) != 2 {
		t.Errorf("retries = %v, want 2", sink.retries)
	}
}

func TestControllerPermissionDeniedHaltsBeforeServer(t *testing.T) {
	srv := &interviewServer{}
	fake := audio.NewFakeContext(make([]byte, 64000), false)
	fake.FailNextCapture()

	ctrl, _, voice, _ := newTestController(t, srv, fake)
	err := ctrl.Run(context.Background())
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("Run err = %v, want ErrPermissionDenied", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.calls) != 0 {
		t.Errorf("server saw calls %v before permission check passed", srv.calls)
	}
	if len(voice.Spoken()) != 0 {
		t.Errorf("narrated %v despite failed device probe", voice.Spoken())
	}
}

func TestControllerServerErrorHalts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start_interview", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "Missing required session data."})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	httpClient := upload.NewTracedClient(5 * time.Second)
	sink := &testSink{}
	ctrl := NewController(
		NewClient(httpClient, ts.URL),
		upload.NewAnswerUploader(httpClient, ts.URL, upload.DefaultChunkSize),
		upload.NewStreamUploader(httpClient, ts.URL),
		audio.NewFakeContext(make([]byte, 64000), false), nil,
		narrator.Null{}, sink, Config{CountdownSeconds: 1},
	)
	sink.controller = ctrl

	err := ctrl.Run(context.Background())
	if !errors.Is(err, ErrServerError) {
		t.Fatalf("Run err = %v, want ErrServerError", err)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.recordings != 0 {
		t.Errorf("recordings = %d, want 0 when the interview never starts", sink.recordings)
	}
}
