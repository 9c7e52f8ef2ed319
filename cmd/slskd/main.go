// Command slskd is a reference entrypoint wiring the upload core (Queue,
// Governor, Scheduler) behind a CLI, with an in-memory TransferStore, a
// static UserService, and a simulated PeerClient standing in for the
// Soulseek transport, which is explicitly out of scope for this module.
package main

import (
	"fmt"
	"os"

	"github.com/slskd/slskd/cmd/slskd/commands"

	// Registers the Prometheus-backed UploadMetrics constructor.
	_ "github.com/slskd/slskd/pkg/metrics/prometheus"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
