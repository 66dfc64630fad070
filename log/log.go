package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// UploadMetrics are the per-answer upload timings logged once the finish
// signal has been acknowledged.
type UploadMetrics struct {
	AudioLengthS float64
	BlobKB       float64
	Chunks       int
	ChunkKB      float64
	DNSTimeMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	TotalTimeMs  float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: VIVA_LOG_PATH environment variable
	envPath := os.Getenv("VIVA_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "interview_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// QuestionAsked records the question about to be narrated.
func QuestionAsked(number int, topic, question string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("number", number).
		Str("topic", topic).
		Str("question", question).
		Msg("question_asked")
}

// AnswerText appends a transcribed candidate answer to the interview log.
func AnswerText(topic, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, topic, text)
	transcriptFile.WriteString(line)
}

func AnswerUpload(m UploadMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("audio_s", m.AudioLengthS).
		Float64("blob_kb", m.BlobKB).
		Int("chunks", m.Chunks).
		Float64("chunk_kb", m.ChunkKB).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("answer_upload")
}

// Retry records a recoverable failure on the answer path.
func Retry(attempt, max int, reason string) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Int("attempt", attempt).
		Int("max", max).
		Str("reason", reason).
		Msg("answer_retry")
}

func StreamSegment(seq, size int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("seq", seq).
		Int("bytes", size).
		Msg("stream_segment")
}

func SessionStart(server, device, narrator string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("server", server).
		Str("device", device).
		Str("narrator", narrator).
		Msg("session_start")
}

// WriteResults saves the graded question list as JSON in the log
// directory, mirroring the record the server keeps.
func WriteResults(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(Dir(), "interview_results.json")
	return os.WriteFile(path, data, 0644)
}

func SessionEnd(questions int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("questions", questions).
		Msg("session_end")
}
