package doctor

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"viva/audio"
	"viva/encoder"
	"viva/narrator"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(serverURL, voice string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("viva doctor - interactive system diagnostics")
	fmt.Println("============================================")

	allPass := true

	if !checkMicrophone() {
		allPass = false
	}
	if !checkNarration(voice) {
		allPass = false
	}
	if !checkServer(serverURL) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[1/3] Microphone capture")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	pcm, err := recordAudio(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	seconds := float64(len(pcm)/2) / float64(encoder.SampleRate)
	fmt.Printf("  PASS: captured %.1fs (%.1f KB)\n", seconds, float64(len(pcm))/1024)
	return true
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, dur time.Duration) ([]byte, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	var mu sync.Mutex
	var pcm []byte
	capture.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})
	defer capture.ClearCallback()

	if err := capture.Start(); err != nil {
		return nil, err
	}
	time.Sleep(dur)
	capture.Stop()

	mu.Lock()
	defer mu.Unlock()
	return pcm, nil
}

func checkNarration(voice string) bool {
	fmt.Println()
	fmt.Println("[2/3] Speech narration")

	n := narrator.New(voice)
	if n.Name() == "none" {
		fmt.Println("  WARN: no speech engine found, questions will be shown silently")
		// Not fatal: the interview runs without narration.
		return true
	}
	fmt.Printf("Using engine: %s\n", n.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := n.Speak(ctx, "This is a narration test."); err != nil {
		fmt.Printf("  FAIL: narration error: %v\n", err)
		return false
	}

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Did you hear the test sentence? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: narration verified by user")
		return true
	}
	fmt.Println("  FAIL: narration not confirmed")
	return false
}

func checkServer(serverURL string) bool {
	fmt.Println()
	fmt.Println("[3/3] Interview server")

	if serverURL == "" {
		fmt.Println("  FAIL: no server URL configured (use -server or VIVA_SERVER)")
		return false
	}

	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now()
	resp, err := client.Get(serverURL)
	if err != nil {
		fmt.Printf("  FAIL: cannot reach %s: %v\n", serverURL, err)
		return false
	}
	resp.Body.Close()

	fmt.Printf("  PASS: %s answered with %d in %dms\n", serverURL, resp.StatusCode, time.Since(start).Milliseconds())
	return true
}
