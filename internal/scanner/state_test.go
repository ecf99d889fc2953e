package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		in   Input
		want State
		ok   bool
	}{
		{"open", StateIdle, InputOpen, StateScanning, true},
		{"open with everyone in", StateIdle, InputOpenAllCheckedIn, StateAllCheckedIn, true},
		{"force continue", StateAllCheckedIn, InputForceContinue, StateScanning, true},
		{"decline", StateAllCheckedIn, InputDecline, StateIdle, true},
		{"identified", StateScanning, InputScanSuccess, StateIdentified, true},
		{"duplicate", StateScanning, InputScanDuplicate, StateDuplicate, true},
		{"scan error keeps scanning", StateScanning, InputScanError, StateScanning, true},
		{"identified delay", StateIdentified, InputIdentifiedElapsed, StateAwaitingPhoto, true},
		{"commit done", StateAwaitingPhoto, InputCommitDone, StateScanning, true},
		{"commit failed allows retry", StateAwaitingPhoto, InputCommitFailed, StateAwaitingPhoto, true},
		{"dismiss duplicate", StateDuplicate, InputDismiss, StateScanning, true},
		{"inactivity pause", StateScanning, InputInactivity, StatePaused, true},
		{"inactivity on duplicate modal", StateDuplicate, InputInactivity, StatePaused, true},
		{"resume", StatePaused, InputResume, StateScanning, true},
		{"close from anywhere", StateAwaitingPhoto, InputClose, StateIdle, true},

		{"scan while idle", StateIdle, InputScanSuccess, StateIdle, false},
		{"scan while paused", StatePaused, InputScanSuccess, StatePaused, false},
		{"commit while scanning", StateScanning, InputCommitDone, StateScanning, false},
		{"pause during photo", StateAwaitingPhoto, InputInactivity, StateAwaitingPhoto, false},
		{"resume while scanning", StateScanning, InputResume, StateScanning, false},
		{"open twice", StateScanning, InputOpen, StateScanning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Transition(tt.from, tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateCameraOn(t *testing.T) {
	assert.False(t, StateIdle.CameraOn())
	assert.False(t, StatePaused.CameraOn())
	assert.False(t, StateAllCheckedIn.CameraOn())
	assert.True(t, StateScanning.CameraOn())
	assert.True(t, StateAwaitingPhoto.CameraOn())
	assert.Equal(t, "awaiting_photo", StateAwaitingPhoto.String())
}
