package instance

import "os"

// GetID returns the worker instance identifier used in logs and lock owners.
func GetID() string {
	for _, key := range []string{"TESTHUB_WORKER_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "worker-0"
}
