package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"viva/interview"
)

// TUI message types
type NarratingMsg struct{ Text string }
type QuestionMsg struct {
	Number   int
	Topic    string
	Question string
}
type CountdownMsg struct{ Remaining int }
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type UploadingMsg struct{}
type TranscriptionMsg struct{ Text string }
type RetryMsg struct {
	Attempt int
	Max     int
	Reason  string
}
type SummaryMsg struct {
	Records  []interview.QuestionRecord
	Averages []interview.TopicAverage
	Summary  string
}
type SessionErrorMsg struct{ Err error }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

type tuiPhase int

const (
	phaseStarting tuiPhase = iota
	phaseNarrating
	phaseCountdown
	phaseRecording
	phaseUploading
	phaseWaiting
	phaseSummary
	phaseError
)

type tuiModel struct {
	phase         tuiPhase
	frame         int
	width, height int

	questionNumber int
	topic          string
	question       string
	narration      string
	countdown      int

	recordingDuration float64
	audioLevel        float64
	noVoice           bool

	transcription string
	retryNotice   string

	summary  SummaryMsg
	err      error
	stopFunc func()

	deviceLine string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	topicStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	countdownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
)

// NewTUIProgram builds the interview display. stopFunc ends the current
// answer recording when the candidate presses enter or space.
func NewTUIProgram(stopFunc func()) *tea.Program {
	m := tuiModel{stopFunc: stopFunc}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if msg.String() == "q" && m.phase != phaseSummary && m.phase != phaseError {
				break // q only quits once the interview is over
			}
			return m, tea.Quit
		case "enter", " ":
			if m.phase == phaseRecording && m.stopFunc != nil {
				m.stopFunc()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case NarratingMsg:
		m.phase = phaseNarrating
		m.narration = msg.Text

	case QuestionMsg:
		m.questionNumber = msg.Number
		m.topic = msg.Topic
		m.question = msg.Question
		m.retryNotice = ""
		m.transcription = ""

	case CountdownMsg:
		m.phase = phaseCountdown
		m.countdown = msg.Remaining

	case RecordingStartMsg:
		m.phase = phaseRecording
		m.recordingDuration = 0
		m.audioLevel = 0
		m.noVoice = false

	case RecordingStopMsg:
		m.audioLevel = 0

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.phase == phaseRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case UploadingMsg:
		m.phase = phaseUploading

	case TranscriptionMsg:
		m.phase = phaseWaiting
		m.transcription = msg.Text

	case RetryMsg:
		m.retryNotice = fmt.Sprintf("attempt %d/%d: %s", msg.Attempt, msg.Max, msg.Reason)

	case SummaryMsg:
		m.phase = phaseSummary
		m.summary = msg

	case SessionErrorMsg:
		m.phase = phaseError
		m.err = msg.Err

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.phase == phaseSummary {
		return m.viewSummary()
	}

	var b strings.Builder
	b.WriteString("\n")

	if m.questionNumber > 0 {
		b.WriteString(topicStyle.Render(fmt.Sprintf("Question %d — %s", m.questionNumber, m.topic)) + "\n\n")
		for _, line := range wrapText(m.question, m.contentWidth()) {
			b.WriteString(questionStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	switch m.phase {
	case phaseStarting:
		b.WriteString(dimStyle.Render("Checking devices...") + "\n")
	case phaseNarrating:
		dots := strings.Repeat(".", m.frame/5%4)
		b.WriteString(dimStyle.Render("Speaking"+dots) + "\n")
	case phaseCountdown:
		b.WriteString(countdownStyle.Render(fmt.Sprintf("Recording starts in %d...", m.countdown)) + "\n")
	case phaseRecording:
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.1fs ", m.recordingDuration)))
		b.WriteString(levelBar(m.audioLevel, 24) + "\n")
		if m.noVoice {
			b.WriteString(warnStyle.Render("  no voice detected — please speak up") + "\n")
		}
	case phaseUploading:
		b.WriteString(dimStyle.Render("Uploading answer...") + "\n")
	case phaseWaiting:
		b.WriteString(dimStyle.Render("Waiting for the next question...") + "\n")
	case phaseError:
		b.WriteString(warnStyle.Render("Error: ") + m.err.Error() + "\n")
		b.WriteString(helpStyle.Render("q to quit") + "\n")
	}

	if m.retryNotice != "" {
		b.WriteString("\n" + warnStyle.Render(m.retryNotice) + "\n")
	}
	if m.transcription != "" {
		b.WriteString("\n" + dimStyle.Render("Your answer:") + "\n")
		for _, line := range wrapText(m.transcription, m.contentWidth()) {
			b.WriteString(answerStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n")
	if m.phase == phaseRecording {
		b.WriteString(helpStyle.Render("enter/space to finish your answer") + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(helpStyle.Render(m.deviceLine) + "\n")
	}
	b.WriteString(helpStyle.Render("viva " + version))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m tuiModel) viewSummary() string {
	var b strings.Builder
	b.WriteString(summaryStyle.Render("Interview complete") + "\n\n")

	for i, r := range m.summary.Records {
		b.WriteString(topicStyle.Render(fmt.Sprintf("%d. [%s] ", i+1, r.Topic)))
		b.WriteString(questionStyle.Render(r.Question) + "\n")
		if r.CandiAnswer != "" {
			for _, line := range wrapText(r.CandiAnswer, m.contentWidth()-3) {
				b.WriteString("   " + answerStyle.Render(line) + "\n")
			}
		}
		score := string(r.Score)
		if score == "" {
			score = "N/A"
		}
		b.WriteString("   " + dimStyle.Render("score: "+score) + "\n")
	}

	if len(m.summary.Averages) > 0 {
		b.WriteString("\n" + topicStyle.Render("Topic averages") + "\n")
		widest := 0
		for _, a := range m.summary.Averages {
			if len(a.Topic) > widest {
				widest = len(a.Topic)
			}
		}
		for _, a := range m.summary.Averages {
			b.WriteString(fmt.Sprintf("  %-*s  %s\n", widest, a.Topic, summaryStyle.Render(a.Average)))
		}
	}

	if m.summary.Summary != "" {
		b.WriteString("\n" + topicStyle.Render("Interviewer summary") + "\n")
		for _, line := range wrapText(m.summary.Summary, m.contentWidth()) {
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render("q to quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m tuiModel) contentWidth() int {
	w := m.width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func levelBar(level float64, width int) string {
	filled := int(level * 8 * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return dimStyle.Render(bar)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

// tuiSink forwards controller events to the Bubble Tea program. Sends
// go through tuiSend, which drops events until the program is up.
type tuiSink struct{}

func (tuiSink) FormAccepted() {}
func (tuiSink) Narrating(text string) {
	tuiSend(NarratingMsg{Text: text})
}
func (tuiSink) QuestionShown(number int, topic, question string) {
	tuiSend(QuestionMsg{Number: number, Topic: topic, Question: question})
}
func (tuiSink) CountdownTick(remaining int) { tuiSend(CountdownMsg{Remaining: remaining}) }
func (tuiSink) RecordingStart()             { tuiSend(RecordingStartMsg{}) }
func (tuiSink) RecordingTick(duration float64) {
	tuiSend(RecordingTickMsg{Duration: duration})
}
func (tuiSink) AudioLevel(level float64) { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) NoVoiceWarning()          { tuiSend(NoVoiceWarningMsg{}) }
func (tuiSink) VoiceCleared()            { tuiSend(VoiceClearedMsg{}) }
func (tuiSink) RecordingStop()           { tuiSend(RecordingStopMsg{}) }
func (tuiSink) Uploading()               { tuiSend(UploadingMsg{}) }
func (tuiSink) TranscriptionShown(text string) {
	tuiSend(TranscriptionMsg{Text: text})
}
func (tuiSink) RetryNotice(attempt, max int, reason string) {
	tuiSend(RetryMsg{Attempt: attempt, Max: max, Reason: reason})
}
func (tuiSink) SummaryReady(records []interview.QuestionRecord, averages []interview.TopicAverage, summary string) {
	tuiSend(SummaryMsg{Records: records, Averages: averages, Summary: summary})
}
func (tuiSink) SessionError(err error) { tuiSend(SessionErrorMsg{Err: err}) }
