package audio

import (
	"errors"
	"fmt"
	"strings"
)

const WAVHeaderSize = 44

// ErrPermissionDenied reports that no capture device could be acquired,
// either because access was refused or because no device exists.
var ErrPermissionDenied = errors.New("microphone access denied or no capture device available")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Probe acquires a capture device, starts it, and immediately releases it.
// It is the permission check run before the interview begins: a failure
// here means recording would fail too.
func Probe(ctx Context, device *DeviceInfo, config CaptureConfig) error {
	capture, err := ctx.NewCapture(device, config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer capture.Close()
	if err := capture.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	capture.Stop()
	return nil
}
