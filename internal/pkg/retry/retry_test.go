// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package retry

import (
	"errors"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

var (
	errBusy  = errors.New("busy")
	errFatal = errors.New("fatal")
)

// When adjusting LockBackoff, this can help calculate the steps, duration and
// exponential backoff factor required to get within a desired retry duration.
func TestBackoff(t *testing.T) {
	i := 0
	now := time.Now()
	err := OnErrorIs(LockBackoff, func() error {
		i++
		return errBusy
	}, errBusy)
	if !errors.Is(err, errBusy) {
		t.Errorf("OnErrorIs() error = %v, want the last error", err)
	}
	if i != LockBackoff.Steps {
		t.Errorf("got: %d, want: %d", i, LockBackoff.Steps)
	}
	if d := time.Since(now); d < 500*time.Millisecond || d > 2*time.Second {
		t.Errorf("retried for %v", d)
	}
}

func TestOnError(t *testing.T) {
	fast := wait.Backoff{Steps: 5, Duration: time.Millisecond, Factor: 1}
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success", []error{nil}, 1, nil},
		{"retried then success", []error{errBusy, errBusy, nil}, 3, nil},
		{"not retriable", []error{errBusy, errFatal}, 2, errFatal},
		{"exhausted", []error{errBusy, errBusy, errBusy, errBusy, errBusy}, 5, errBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := OnErrorIs(fast, func() error {
				err := tt.errs[calls]
				calls++
				return err
			}, errBusy)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}
