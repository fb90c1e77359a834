// Command smoke probes a running grievance-api instance and reports
// endpoints whose status differs from the expectation list.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type target struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Expect int    `json:"expect"`
}

type config struct {
	Targets []target `json:"targets"`
}

func main() {
	var (
		baseURL     string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	failures := 0
	for _, tgt := range targets {
		req, err := http.NewRequest(tgt.Method, baseURL+tgt.Path, nil)
		if err != nil {
			log.Printf("FAIL %s %s: %v", tgt.Method, tgt.Path, err)
			failures++
			continue
		}
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			log.Printf("FAIL %s %s: %v", tgt.Method, tgt.Path, err)
			failures++
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != tgt.Expect {
			log.Printf("FAIL %s %s: got %d want %d (%s)", tgt.Method, tgt.Path, resp.StatusCode, tgt.Expect, time.Since(start))
			failures++
			continue
		}
		fmt.Printf("OK   %s %s %d (%s)\n", tgt.Method, tgt.Path, resp.StatusCode, time.Since(start))
	}

	if failures > 0 {
		log.Fatalf("%d of %d checks failed", failures, len(targets))
	}
	fmt.Printf("all %d checks passed\n", len(targets))
}

func loadTargets(path string) ([]target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}
