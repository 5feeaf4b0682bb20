// The main package for the statusgate executable.
package main

import (
	"github.com/ovsienko/statusgate/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
