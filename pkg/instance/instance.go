package instance

import "os"

// GetID returns the worker instance identifier or a default value.
// Sweep and outbox workers use this as the distributed lock owner.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	return "worker-0"
}
