// Command echopressd runs the EchoPress daemon in the foreground. It is the
// same process `echopress start` launches, packaged for service managers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
