package notify

import (
	"fmt"
	"testing"
)

func TestHubDrain(t *testing.T) {
	h := NewHub()
	h.Success("uploaded")
	h.Error("delete failed")

	toasts := h.Drain()
	if len(toasts) != 2 {
		t.Fatalf("got %d toasts; want 2", len(toasts))
	}
	if toasts[0].Level != LevelSuccess || toasts[0].Message != "uploaded" {
		t.Errorf("toasts[0] = %+v", toasts[0])
	}
	if toasts[1].Level != LevelError || toasts[1].Message != "delete failed" {
		t.Errorf("toasts[1] = %+v", toasts[1])
	}
	if toasts[0].ID == toasts[1].ID {
		t.Error("toast ids must be unique")
	}

	// Draining dismisses: a second poll sees nothing.
	if again := h.Drain(); len(again) != 0 {
		t.Errorf("second drain returned %d toasts; want 0", len(again))
	}
}

func TestHubPendingIsBounded(t *testing.T) {
	h := NewHub()
	for i := 0; i < maxPending*2; i++ {
		h.Success(fmt.Sprintf("toast %d", i))
	}
	toasts := h.Drain()
	if len(toasts) != maxPending {
		t.Fatalf("got %d toasts; want %d", len(toasts), maxPending)
	}
	// The oldest toasts are the ones dropped.
	if toasts[len(toasts)-1].Message != fmt.Sprintf("toast %d", maxPending*2-1) {
		t.Errorf("newest toast = %q", toasts[len(toasts)-1].Message)
	}
}

func TestHubUploadSignals(t *testing.T) {
	h := NewHub()
	ch, unsub := h.SubscribeUploads()

	h.UploadCompleted()
	select {
	case <-ch:
	default:
		t.Fatal("subscriber did not receive the signal")
	}

	unsub()
	h.UploadCompleted()
	select {
	case <-ch:
		t.Fatal("unsubscribed channel still receives signals")
	default:
	}
}

func TestHubUploadSignals_SlowSubscriberNeverBlocks(t *testing.T) {
	h := NewHub()
	_, unsub := h.SubscribeUploads()
	defer unsub()

	// Far more signals than the channel buffers; sends must not block.
	for i := 0; i < 100; i++ {
		h.UploadCompleted()
	}
}
