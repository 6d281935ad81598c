// Command prfctl runs maintenance operations against the PRF Monitor database.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
