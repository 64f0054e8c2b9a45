package instance

import "os"

// EnvWorkerID overrides the identifier reported by worker processes.
const EnvWorkerID = "GULAUTOS_WORKER_ID"

// GetID names the running process in logs: the explicit worker id, then the
// host name, then a fixed fallback.
func GetID() string {
	if id := os.Getenv(EnvWorkerID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "media-worker-0"
}
