package reranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/engine"
	"github.com/kalambet/recoagent/internal/metrics"
	"github.com/kalambet/recoagent/internal/rules"
	"github.com/kalambet/recoagent/internal/scoring"
)

// Defaults for the generate call.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 512
	DefaultTimeout     = 15 * time.Second
)

// Result is the outcome of a re-rank. A nil IDs slice means the model gave
// no usable answer and the caller must fall back.
type Result struct {
	IDs []int64
	// Reasons maps decimal id strings to the model's short justification.
	Reasons map[string]string
	// Model is the model that produced IDs.
	Model string
}

// None reports whether the result carries no usable ids.
func (r Result) None() bool { return len(r.IDs) == 0 }

// Reranker orders a shortlist with an external model. Implementations never
// return ids that are not in the shortlist.
type Reranker interface {
	Rerank(ctx context.Context, primary catalog.Product, shortlist []scoring.Candidate, limit int) Result
}

// Option customises an LLMReranker.
type Option func(*LLMReranker)

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(r *LLMReranker) { r.opts.Temperature = t }
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(r *LLMReranker) {
		if n > 0 {
			r.opts.MaxTokens = n
		}
	}
}

// NewReranker returns an LLMReranker, or a NoOpReranker when there is no
// engine or neither model is configured.
func NewReranker(eng engine.Engine, primaryModel, fallbackModel string, timeout time.Duration, table *rules.Table, opts ...Option) Reranker {
	if eng == nil || (primaryModel == "" && fallbackModel == "") {
		return &NoOpReranker{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if table == nil {
		table = rules.Default()
	}
	r := &LLMReranker{
		engine:  eng,
		models:  nonEmpty(primaryModel, fallbackModel),
		timeout: timeout,
		rules:   table,
		opts: engine.GenerateOptions{
			JSON:        true,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LLMReranker asks a primary model, then a fallback model, to pick and
// order products from the shortlist. Attempts are sequential and each is
// bounded by the timeout.
type LLMReranker struct {
	engine  engine.Engine
	models  []string
	timeout time.Duration
	rules   *rules.Table
	opts    engine.GenerateOptions
}

// Models returns the configured model ids in attempt order.
func (r *LLMReranker) Models() []string { return r.models }

// Rerank never fails: client errors, timeouts, malformed output and answers
// that sanitize to nothing all yield a None result.
func (r *LLMReranker) Rerank(ctx context.Context, primary catalog.Product, shortlist []scoring.Candidate, limit int) Result {
	if len(shortlist) == 0 || limit <= 0 {
		return Result{}
	}

	prompt, err := buildPrompt(primary, shortlist, r.rules.AllowedList(primary.Category), limit)
	if err != nil {
		slog.Warn("reranker: building prompt", "error", err)
		return Result{}
	}

	text, model, ok := r.generate(ctx, prompt)
	if !ok {
		slog.Info("reranker: no model responded", "primary", primary.ID)
		return Result{}
	}

	resp, err := parseResponse(text)
	if err != nil {
		slog.Warn("reranker: unusable model output", "model", model, "error", err)
		metrics.LLMRequests.WithLabelValues(model, "parse_error").Inc()
		return Result{}
	}

	ids := sanitizeIDs(resp.ids, scoring.Index(shortlist), limit)
	if len(ids) == 0 {
		slog.Info("reranker: no valid ids after sanitizing", "model", model, "returned", len(resp.ids))
		metrics.LLMRequests.WithLabelValues(model, "empty").Inc()
		return Result{}
	}

	return Result{IDs: ids, Reasons: resp.reasons, Model: model}
}

// generate tries each model in order and returns the first response text.
// A failed attempt moves on to the next model unless the caller's context is
// done.
func (r *LLMReranker) generate(ctx context.Context, prompt string) (string, string, bool) {
	for _, model := range r.models {
		if ctx.Err() != nil {
			return "", "", false
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		text, err := r.engine.Generate(attemptCtx, model, prompt, r.opts)
		cancel()

		if err != nil {
			metrics.RecordLLM(model, "client_error", time.Since(start))
			slog.Warn("reranker: model failed", "model", model, "error", err,
				"timeout", errors.Is(err, context.DeadlineExceeded))
			continue
		}
		metrics.RecordLLM(model, "ok", time.Since(start))
		return text, model, true
	}
	return "", "", false
}

func buildPrompt(primary catalog.Product, shortlist []scoring.Candidate, allowed []string, limit int) (string, error) {
	primaryJSON, err := json.Marshal(primary)
	if err != nil {
		return "", fmt.Errorf("encoding primary: %w", err)
	}
	products := make([]catalog.Product, len(shortlist))
	for i, c := range shortlist {
		products[i] = c.Product
	}
	candidatesJSON, err := json.Marshal(products)
	if err != nil {
		return "", fmt.Errorf("encoding candidates: %w", err)
	}
	allowedJSON, err := json.Marshal(allowed)
	if err != nil {
		return "", fmt.Errorf("encoding allowed categories: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a product recommendation re-ranker.\n\n")
	b.WriteString("Primary product:\n")
	b.Write(primaryJSON)
	b.WriteString("\n\nCandidate products (THE ONLY PRODUCTS YOU MAY CHOOSE FROM):\n")
	b.Write(candidatesJSON)
	b.WriteString("\n\nAllowed candidate categories for this primary:\n")
	b.Write(allowedJSON)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Choose only ids of the candidate products listed above.\n")
	b.WriteString("- Never select a candidate whose category is not in the allowed list.\n")
	b.WriteString("- If the allowed list is empty, select only candidates with explicit compatibility attributes " +
		"(compatible_model, compatible_brand, compatible_with_<category>, compatible_with_speaker, compatible_with_medical_model).\n")
	b.WriteString("- Answer with JSON only, in exactly this shape:\n")
	fmt.Fprintf(&b, `{"primary_item_id": %d, "recommendation_ids": [<id>, ...], "reasons": {"<id>": "<short reason>"}}`, primary.ID)
	fmt.Fprintf(&b, "\n- Return at most %d ids, best first. \"reasons\" is optional.\n", limit)
	return b.String(), nil
}

type rawResponse struct {
	PrimaryItemID     json.RawMessage `json:"primary_item_id"`
	RecommendationIDs json.RawMessage `json:"recommendation_ids"`
	Reasons           json.RawMessage `json:"reasons"`
}

type parsedResponse struct {
	ids     []json.RawMessage
	reasons map[string]string
}

// parseResponse extracts the answer object from model output. Small models
// wrap JSON in markdown code fences or prepend filler, so the parser:
//  1. Strips markdown code fences if present (```json ... ```)
//  2. Takes the text between the first { and the last }
//  3. Requires recommendation_ids to be a JSON array
//
// A reasons field of the wrong shape is ignored rather than rejected.
func parseResponse(resp string) (parsedResponse, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return parsedResponse{}, fmt.Errorf("no JSON object in response")
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return parsedResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}

	var out parsedResponse
	if len(raw.RecommendationIDs) == 0 || string(raw.RecommendationIDs) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw.RecommendationIDs, &out.ids); err != nil {
		return parsedResponse{}, fmt.Errorf("recommendation_ids is not a list: %w", err)
	}
	out.reasons = parseReasons(raw.Reasons)
	return out, nil
}

func parseReasons(raw json.RawMessage) map[string]string {
	reasons := map[string]string{}
	if len(raw) == 0 {
		return reasons
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		slog.Debug("reranker: ignoring malformed reasons", "error", err)
		return reasons
	}
	for k, v := range m {
		text, ok := v.(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		if id, ok := coerceID(k); ok {
			reasons[strconv.FormatInt(id, 10)] = strings.TrimSpace(text)
		}
	}
	return reasons
}

// sanitizeIDs keeps, in order, the ids that coerce to an integer and belong
// to the shortlist, dropping duplicates, and truncates to limit.
func sanitizeIDs(raw []json.RawMessage, shortlist map[int64]int, limit int) []int64 {
	seen := make(map[int64]bool, len(raw))
	var out []int64
	for _, r := range raw {
		id, ok := coerceRawID(r)
		if !ok {
			slog.Debug("reranker: dropping non-integer id", "value", string(r))
			continue
		}
		if _, member := shortlist[id]; !member || seen[id] {
			slog.Debug("reranker: dropping id outside shortlist or duplicate", "id", id)
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}

func coerceRawID(r json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(r, &n); err == nil {
		return n, true
	}
	var f float64
	if err := json.Unmarshal(r, &f); err == nil {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return coerceID(s)
	}
	return 0, false
}

func coerceID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func nonEmpty(models ...string) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// NoOpReranker always returns a None result. Used when no model is
// configured.
type NoOpReranker struct{}

func (n *NoOpReranker) Rerank(_ context.Context, _ catalog.Product, _ []scoring.Candidate, _ int) Result {
	return Result{}
}
