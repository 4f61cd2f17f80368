// vtdsapp drives the vTDS demo application layer: prepare, validate,
// deploy, verify and remove the demo workloads, or serve the status API.
package main

import (
	"log"
	"os"

	"vtdsapp/cmd/vtdsapp/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
