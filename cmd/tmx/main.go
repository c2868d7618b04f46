// Command tmx manages trace macro usage files and decodes call-site identities.
package main

import (
	"os"

	"github.com/aidanlsb/tracemacro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
