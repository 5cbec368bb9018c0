// Responder turns pager alerts into diagnosed incidents: it ingests webhooks,
// runs the diagnostic agent through a durable queue, opens draft pull
// requests and reports to chat.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
