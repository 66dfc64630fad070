package narrator

import (
	"context"
	"testing"
	"time"
)

func TestNullSpeakReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := (Null{}).Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Null.Speak: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Null.Speak should not block")
	}
}

func TestFakeRecordsInOrder(t *testing.T) {
	f := &Fake{}
	f.Speak(context.Background(), "first")
	f.Speak(context.Background(), "second")

	spoken := f.Spoken()
	if len(spoken) != 2 || spoken[0] != "first" || spoken[1] != "second" {
		t.Errorf("Spoken() = %v", spoken)
	}
}

func TestFakeHonorsCancellation(t *testing.T) {
	f := &Fake{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Speak(ctx, "never"); err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(f.Spoken()) != 0 {
		t.Error("cancelled Speak should not record text")
	}
}

func TestNewNeverReturnsNil(t *testing.T) {
	if New("") == nil {
		t.Fatal("New returned nil")
	}
	if New("Some Voice") == nil {
		t.Fatal("New with voice returned nil")
	}
}
