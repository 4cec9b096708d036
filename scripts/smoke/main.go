// Command smoke runs a quick end-to-end check against a deployed instance:
// it walks a list of HTTP targets, verifies status codes and exercises the
// anonymous submit/track flow for every registered domain.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Body     string `json:"body,omitempty"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	Pass     bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
		submitFlow  bool
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.BoolVar(&submitFlow, "submit-flow", false, "Also run the anonymous submit/track flow per domain")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		warnings int
	)

	for _, t := range targets {
		res := checkTarget(client, base, t)
		if !res.Pass {
			if t.Critical {
				breaking++
			} else {
				warnings++
			}
		}
		results = append(results, res)
	}

	if submitFlow {
		for _, res := range runSubmitFlow(client, base) {
			if !res.Pass {
				breaking++
			}
			results = append(results, res)
		}
	}

	printReport(results)

	fmt.Printf("Failing critical checks: %d, warnings: %d\n", breaking, warnings)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func checkTarget(client *http.Client, base string, tgt target) result {
	res := result{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if tgt.Body != "" {
		body = strings.NewReader(tgt.Body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		res.Error = err
		return res
	}
	if tgt.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	res.Status = resp.StatusCode
	expect := tgt.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	res.Pass = res.Status == expect
	return res
}

// runSubmitFlow submits one request per domain and tracks it back by reference.
func runSubmitFlow(client *http.Client, base string) []result {
	payloads := map[string]string{
		"academic": `{"full_name":"Smoke Test","phone":"+221770000000","email":"smoke@example.com","category":"MASTER","subcategory":"MEMOIRE_MASTER","details":{"institution":"UCAD","field_of_study":"Droit"}}`,
		"travel":   `{"full_name":"Smoke Test","phone":"+221770000000","email":"smoke@example.com","category":"VISA_ETUDES","details":{"nationality":"SN","destination":"FR"}}`,
		"vapvae":   `{"full_name":"Smoke Test","phone":"+221770000000","email":"smoke@example.com","category":"VAP","details":{"profession":"Comptable","years_experience":"12"}}`,
	}

	var results []result
	for domain, payload := range payloads {
		submitPath := fmt.Sprintf("/api/v1/%s/requests", domain)
		res := result{Target: target{Method: http.MethodPost, Path: submitPath, Critical: true}}

		resp, err := client.Post(strings.TrimRight(base, "/")+submitPath, "application/json", bytes.NewReader([]byte(payload)))
		if err != nil {
			res.Error = err
			results = append(results, res)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		res.Status = resp.StatusCode
		res.Pass = resp.StatusCode == http.StatusCreated
		results = append(results, res)
		if !res.Pass {
			continue
		}

		reference := extractReference(body)
		trackPath := fmt.Sprintf("/api/v1/%s/requests/track/%s", domain, reference)
		results = append(results, checkTarget(client, base, target{
			Method: http.MethodGet, Path: trackPath, Expect: http.StatusOK, Critical: true,
		}))
	}
	return results
}

func extractReference(body []byte) string {
	var envelope struct {
		Data struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Data.Reference
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Pass {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d (%s) | Critical: %t\n", res.Status, res.Duration, res.Target.Critical)
	}
}
