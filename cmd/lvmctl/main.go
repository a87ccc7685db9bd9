// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command lvmctl manages LVM volume groups, logical volumes and physical
// volumes through the lvm access layer.
package main

import (
	"context"
	"os"

	"k8s.io/klog/v2/textlogger"
	ctrl "sigs.k8s.io/controller-runtime"

	"lvm-access/pkg/lvm"
)

var log = ctrl.Log

func main() {
	a := newApp(os.Stdout, os.Stderr)
	root := newRootCmd(a)
	ctrl.SetLogger(textlogger.NewLogger(a.logConfig))
	lvm.RegisterMetrics()

	ctx := context.Background()
	err := root.ExecuteContext(ctx)
	if serr := a.shutdown(ctx); serr != nil {
		log.Error(serr, "failed to release resources")
	}
	if err != nil {
		logAndExit(err, "command failed")
	}
}

// logAndExit logs the error and exits the program with a non-zero status code.
func logAndExit(err error, msg string) {
	log.Error(err, msg)
	os.Exit(1)
}
