// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcmd

import (
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/exec"
)

// Option configures a Runner.
type Option func(*Runner)

// Set the path to the lvm executable.
func WithLVM(path string) Option {
	return func(r *Runner) {
		r.lvmPath = path
	}
}

// Set LVM_SYSTEM_DIR for every command. Empty keeps the inherited
// environment.
func WithSystemDir(dir string) Option {
	return func(r *Runner) {
		r.systemDir = dir
	}
}

// Set the command executor.
func WithExec(e exec.Interface) Option {
	return func(r *Runner) {
		r.exec = e
	}
}

// Set the tracer.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		r.tracer = tp.Tracer(tracerName)
	}
}
