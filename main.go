package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"viva/audio"
	"viva/beep"
	"viva/doctor"
	"viva/interview"
	"viva/log"
	"viva/narrator"
	"viva/shutdown"
	"viva/upload"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(cancel context.CancelFunc) {
	shutdownOnce.Do(func() {
		cancel()
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
	})
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	serverFlag := flag.String("server", envDefault("VIVA_SERVER", "http://localhost:5000"), "Interview server base URL")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	chunkSizeFlag := flag.Int("chunk-size", upload.DefaultChunkSize, "Answer upload chunk size in bytes")
	countdownFlag := flag.Int("countdown", 4, "Seconds between narration end and recording start")
	retryDelayFlag := flag.Duration("retry-delay", 3*time.Second, "Delay before re-recording after a failed answer")
	maxRetriesFlag := flag.Int("max-retries", 3, "Recording attempts per question before giving up")
	voiceFlag := flag.String("voice", envDefault("VIVA_VOICE", ""), "Preferred narration voice")
	boardFlag := flag.String("board", envDefault("VIVA_BOARD", ""), "Board name for the setup form")
	gradeFlag := flag.String("grade", envDefault("VIVA_GRADE", ""), "Grade for the setup form")
	subjectFlag := flag.String("subject", envDefault("VIVA_SUBJECT", ""), "Subject name for the setup form")
	countryFlag := flag.String("country", envDefault("VIVA_COUNTRY", ""), "Country name for the setup form")
	resumeFlag := flag.String("resume", envDefault("VIVA_RESUME", ""), "Path to the resume file")
	jobDescFlag := flag.String("jobdesc", envDefault("VIVA_JOB_DESCRIPTION", ""), "Path to the job description file")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("viva %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*serverFlag, *voiceFlag))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Printf("Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	voice := narrator.New(*voiceFlag)
	if voice.Name() == "none" {
		fmt.Println("Warning: no speech engine found, questions will be shown silently")
	}

	httpClient := upload.NewTracedClient(60 * time.Second)
	httpClient.Warm(*serverFlag)
	client := interview.NewClient(httpClient, *serverFlag)

	deviceName := "system default"
	if selectedDevice != nil {
		deviceName = selectedDevice.Name
	}
	log.SessionStart(*serverFlag, deviceName, voice.Name())

	// Register before the interview starts. The server rejects question
	// progression for unknown sessions.
	form := interview.FormSubmission{
		Board:              *boardFlag,
		Grade:              *gradeFlag,
		Subject:            *subjectFlag,
		Country:            *countryFlag,
		ResumePath:         *resumeFlag,
		JobDescriptionPath: *jobDescFlag,
	}
	submitCtx, cancelSubmit := context.WithTimeout(context.Background(), 60*time.Second)
	err = client.SubmitForm(submitCtx, form)
	cancelSubmit()
	if err != nil {
		log.Errorf("form submission failed: %v", err)
		fmt.Printf("Error: form submission failed: %v\n", err)
		os.Exit(1)
	}

	ctrl := interview.NewController(
		client,
		upload.NewAnswerUploader(httpClient, client.BaseURL(), *chunkSizeFlag),
		upload.NewStreamUploader(httpClient, client.BaseURL()),
		audioCtx, selectedDevice, voice, tuiSink{},
		interview.Config{
			CountdownSeconds: *countdownFlag,
			RetryDelay:       *retryDelayFlag,
			MaxRetries:       *maxRetriesFlag,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(cancel)
	}()

	go beep.Init()

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(ctrl.StopAnswer)
	tuiMu.Unlock()

	tuiSink{}.FormAccepted()
	tuiSend(DeviceLineMsg{Text: "mic: " + deviceName})

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Errorf("session error: %v", err)
		}
		// The TUI stays up so the candidate can read the summary or the
		// error; it exits on q or ctrl+c.
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown(cancel)
}
