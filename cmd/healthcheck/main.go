// Command healthcheck probes the bot's HTTP surface for container health checks.
// It exits non-zero unless the probe answers 200.
//
// Usage:
//
//	healthcheck [-ready] [-url URL]
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	base := os.Getenv("HEALTHCHECK_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	target := flag.String("url", base, "base URL of the bot's HTTP server")
	ready := flag.Bool("ready", false, "probe /readyz (gateway and archive repository) instead of /healthz")
	flag.Parse()

	path := "/healthz"
	if *ready {
		path = "/readyz"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, strings.TrimRight(*target, "/")+path, nil)
	if err != nil {
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Exit(1)
	}
	if err := resp.Body.Close(); err != nil {
		log.Printf("failed to close response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
