// Command bindlib inspects and edits the binding libraries of a device.
//
//	bindlib show DefaultLibrary
//	bindlib set-point DefaultLibrary lamp --anchor pcf-7b1c --pos 0,1.2,0 --rot 0,0,0,1
//	bindlib --backend file --dir ./libs delete Kitchen
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bindlib:", err)
		os.Exit(GetExitCode(err))
	}
}
