package instance

import "os"

// GetID names this worker replica in logs and consumer diagnostics. Deploys
// set ATELIA_INSTANCE_ID (the pod name in practice); anything unset is a
// single local worker.
func GetID() string {
	if id := os.Getenv("ATELIA_INSTANCE_ID"); id != "" {
		return id
	}
	return "settlement-worker-0"
}
