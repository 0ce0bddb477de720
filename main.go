// main - entry point to the compensation-engine binary's cobra
// commands; individual commands are outlined in ./cmd/.
package main

import (
	"github.com/brave-intl/compensation-engine/cmd"
	// pull in serve command. setup code is in init
	_ "github.com/brave-intl/compensation-engine/cmd/serve"
)

var (
	// variables overwritten at build time
	version string
	commit  string
)

func main() {
	cmd.Execute(version, commit)
}
