package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"
)

// Client calls a piston-compatible execution endpoint. The relay core
// never sees this; run results reach other participants only when the
// caller relays them as a sync-output event.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

func New(baseURL string, log *slog.Logger) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

// Result is the outcome of one run.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
}

type executeFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Output string `json:"output"`
		Code   int    `json:"code"`
	} `json:"run"`
	Message string `json:"message"`
}

// Execute submits source code for a run and returns the captured output.
func (c *Client) Execute(ctx context.Context, language, version, source string) (Result, error) {
	body, err := json.Marshal(executeRequest{
		Language: language,
		Version:  version,
		Files:    []executeFile{{Content: source}},
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/execute", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("runner request: %w", err)
	}
	defer resp.Body.Close()

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("runner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("runner.error", "status", resp.StatusCode, "message", out.Message)
		return Result{}, fmt.Errorf("runner returned %d: %s", resp.StatusCode, out.Message)
	}

	return Result{
		Stdout:   out.Run.Stdout,
		Stderr:   out.Run.Stderr,
		Output:   out.Run.Output,
		ExitCode: out.Run.Code,
	}, nil
}
