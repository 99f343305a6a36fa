// Package contentsafety calls the external text-classification endpoint and
// decides whether user text must be rejected.
package contentsafety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"plantspack/internal/observability"
)

// BlockThreshold is the score at which a blocking category rejects content
// even when the classifier did not flag it.
const BlockThreshold = 0.8

// BlockingCategories are the classifier categories that reject content.
var BlockingCategories = []string{
	"hate",
	"harassment/threatening",
	"sexual/minors",
	"violence/graphic",
	"self-harm/instructions",
}

// Result is the verdict for one piece of text.
type Result struct {
	ShouldBlock bool               `json:"shouldBlock"`
	Flagged     bool               `json:"flagged"`
	Categories  map[string]float64 `json:"categories"`
	Reasons     []string           `json:"reasons"`
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Flagged    bool               `json:"flagged"`
	Categories map[string]float64 `json:"categories"`
	// FlaggedCategories is optional; some providers list the categories they flagged.
	FlaggedCategories []string `json:"flagged_categories"`
}

// Checker is what the composer depends on.
type Checker interface {
	Analyze(ctx context.Context, text string) Result
}

// Client talks to a classifier over HTTP.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient returns a classifier client. An empty url disables classification.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    strings.TrimSpace(url),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a classifier endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Analyze classifies text. It never fails: an unconfigured or unreachable
// classifier allows the content.
func (c *Client) Analyze(ctx context.Context, text string) Result {
	allow := Result{Categories: map[string]float64{}, Reasons: []string{}}
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		observability.ContentSafetyDecisions.WithLabelValues("disabled").Inc()
		return allow
	}

	resp, err := c.classify(ctx, text)
	if err != nil {
		observability.ContentSafetyDecisions.WithLabelValues("error").Inc()
		observability.LogAsyncOperationError(ctx, "content_safety.classify", err, nil)
		return allow
	}

	result := Evaluate(resp.Flagged, resp.Categories, resp.FlaggedCategories)
	decision := "allowed"
	if result.ShouldBlock {
		decision = "blocked"
		observability.GlobalLogger.InfoContext(ctx, "content blocked by classifier",
			slog.Any("reasons", result.Reasons),
		)
	}
	observability.ContentSafetyDecisions.WithLabelValues(decision).Inc()
	return result
}

func (c *Client) classify(ctx context.Context, text string) (resp *classifyResponse, err error) {
	ctx, span := observability.StartClientSpan(ctx, "content-safety", "classify")
	defer func() { observability.EndSpan(span, err) }()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("classifier returned status %d", res.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if out.Categories == nil {
		out.Categories = map[string]float64{}
	}
	return &out, nil
}

// Evaluate applies the blocking rules to a raw classifier verdict. A blocking
// category rejects the text when the provider flagged it or its score reaches
// BlockThreshold.
func Evaluate(flagged bool, scores map[string]float64, flaggedCategories []string) Result {
	if scores == nil {
		scores = map[string]float64{}
	}
	marked := make(map[string]bool, len(flaggedCategories))
	for _, name := range flaggedCategories {
		marked[name] = true
	}

	reasons := []string{}
	for _, name := range BlockingCategories {
		score, scored := scores[name]
		if marked[name] || (scored && score >= BlockThreshold) {
			reasons = append(reasons, name)
		}
	}
	sort.Strings(reasons)

	return Result{
		ShouldBlock: len(reasons) > 0,
		Flagged:     flagged || len(reasons) > 0,
		Categories:  scores,
		Reasons:     reasons,
	}
}
