// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package retry

import (
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

var (
	// LockBackoff is the recommended retry while another writer holds a
	// volume group lock.
	LockBackoff = wait.Backoff{
		Steps:    10,
		Duration: 10 * time.Millisecond,
		Factor:   1.5,
		Jitter:   0.1,
	}
)

// OnError allows the caller to retry fn in case the error returned by fn is
// retriable according to the provided function. backoff defines the maximum
// retries and the wait interval between two retries. The last error is
// returned when the retries are exhausted.
func OnError(backoff wait.Backoff, retriable func(error) bool, fn func() error) error {
	var lastErr error
	err := wait.ExponentialBackoff(backoff, func() (bool, error) {
		err := fn()
		switch {
		case err == nil:
			return true, nil
		case retriable(err):
			lastErr = err
			return false, nil
		default:
			return false, err
		}
	})
	if wait.Interrupted(err) && lastErr != nil {
		err = lastErr
	}
	return err
}

// OnErrorIs retries fn while its error matches one of targets.
func OnErrorIs(backoff wait.Backoff, fn func() error, targets ...error) error {
	return OnError(backoff, func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}, fn)
}
