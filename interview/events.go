package interview

// Sink abstracts the display layer so the Bubble Tea TUI and the
// headless test harness receive the same session events. Every method
// is called from the controller's goroutines and must not block.
type Sink interface {
	FormAccepted()
	Narrating(text string)
	QuestionShown(number int, topic, question string)
	CountdownTick(remaining int)
	RecordingStart()
	RecordingTick(duration float64)
	AudioLevel(level float64)
	NoVoiceWarning()
	VoiceCleared()
	RecordingStop()
	Uploading()
	TranscriptionShown(text string)
	RetryNotice(attempt, max int, reason string)
	SummaryReady(records []QuestionRecord, averages []TopicAverage, summary string)
	SessionError(err error)
}

// NullSink discards every event.
type NullSink struct{}

func (NullSink) FormAccepted()                                         {}
func (NullSink) Narrating(string)                                      {}
func (NullSink) QuestionShown(int, string, string)                     {}
func (NullSink) CountdownTick(int)                                     {}
func (NullSink) RecordingStart()                                       {}
func (NullSink) RecordingTick(float64)                                 {}
func (NullSink) AudioLevel(float64)                                    {}
func (NullSink) NoVoiceWarning()                                       {}
func (NullSink) VoiceCleared()                                         {}
func (NullSink) RecordingStop()                                        {}
func (NullSink) Uploading()                                            {}
func (NullSink) TranscriptionShown(string)                             {}
func (NullSink) RetryNotice(int, int, string)                          {}
func (NullSink) SummaryReady([]QuestionRecord, []TopicAverage, string) {}
func (NullSink) SessionError(error)                                    {}
