package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/metrics"
	"github.com/kalambet/recoagent/internal/reranking"
	"github.com/kalambet/recoagent/internal/retrieval"
	"github.com/kalambet/recoagent/internal/scoring"
	"github.com/kalambet/recoagent/internal/validation"
)

// Limits applied to the caller's requested count.
const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// Path names the stage that produced the final id list.
type Path string

const (
	PathLLM           Path = "llm"
	PathDeterministic Path = "deterministic"
	PathSameCategory  Path = "same_category"
	PathScoredTop     Path = "scored_top"
	PathEmpty         Path = "empty"
)

// Entry is one recommendation: the public projection of a product and the
// optional reason the model gave for it.
type Entry struct {
	Product catalog.PublicProduct `json:"product"`
	Reason  string                `json:"reason,omitempty"`
}

// Outcome captures diagnostic information about one pipeline run.
type Outcome struct {
	Path        Path
	Retrieved   int
	Built       int
	Shortlisted int
	Validated   int
	Model       string
	DurationMs  int64
}

// Options tune the pipeline. Zero values use the package defaults.
type Options struct {
	ShortlistSize int
	MaxCandidates int
	DefaultLimit  int
}

// Recommender composes the pipeline stages: retrieve, build, score,
// re-rank, validate and finalize.
type Recommender struct {
	retriever *retrieval.Retriever
	builder   *retrieval.Builder
	scorer    *scoring.Scorer
	reranker  reranking.Reranker
	validator *validation.Validator
	opts      Options
}

// NewRecommender creates a Recommender wired to all pipeline stages. A nil
// reranker disables the LLM path.
func NewRecommender(
	retriever *retrieval.Retriever,
	builder *retrieval.Builder,
	scorer *scoring.Scorer,
	reranker reranking.Reranker,
	validator *validation.Validator,
	opts Options,
) *Recommender {
	if reranker == nil {
		reranker = &reranking.NoOpReranker{}
	}
	if opts.ShortlistSize <= 0 {
		opts.ShortlistSize = scoring.DefaultShortlistSize
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = retrieval.DefaultMaxResults
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > MaxLimit {
		opts.DefaultLimit = DefaultLimit
	}
	return &Recommender{
		retriever: retriever,
		builder:   builder,
		scorer:    scorer,
		reranker:  reranker,
		validator: validator,
		opts:      opts,
	}
}

// Recommend returns at most limit recommendations for primary. It never
// fails: every problem degrades to a fallback or to an empty list.
func (r *Recommender) Recommend(ctx context.Context, primary catalog.Product, limit int) []Entry {
	entries, _ := r.RecommendWithOutcome(ctx, primary, limit)
	return entries
}

// RecommendWithOutcome is Recommend plus the diagnostics of the run.
func (r *Recommender) RecommendWithOutcome(ctx context.Context, primary catalog.Product, limit int) (entries []Entry, out Outcome) {
	start := time.Now()
	defer func() {
		out.DurationMs = time.Since(start).Milliseconds()
		metrics.RecordRecommendation(string(out.Path), time.Since(start))
	}()

	limit = r.normalizeLimit(limit)
	entries = []Entry{}
	out.Path = PathEmpty

	// 1. Retrieve the raw pool.
	raw, err := r.retriever.Retrieve(ctx, primary, r.opts.MaxCandidates)
	if err != nil {
		slog.Warn("recommend: retrieval failed", "primary", primary.ID, "error", err)
		return
	}
	out.Retrieved = len(raw)
	metrics.RecordStage("retrieve", out.Retrieved)

	// 2. Prune by compatibility.
	built := r.builder.Build(primary, raw)
	out.Built = len(built)
	metrics.RecordStage("build", out.Built)
	slog.Info("recommend: candidates built", "primary", primary.ID, "category", primary.Category,
		"retrieved", out.Retrieved, "built", out.Built)
	if len(built) == 0 {
		return
	}

	// 3. Score and shortlist.
	shortlist := scoring.Shortlist(r.scorer.Score(primary, built), r.opts.ShortlistSize)
	out.Shortlisted = len(shortlist)
	metrics.RecordStage("shortlist", out.Shortlisted)

	// 4. Re-rank, falling back to score order.
	res := r.reranker.Rerank(ctx, primary, shortlist, limit)
	ids, reasons := res.IDs, res.Reasons
	out.Path, out.Model = PathLLM, res.Model
	if res.None() {
		slog.Info("recommend: no usable re-rank, using score order", "primary", primary.ID)
		ids, reasons = topIDs(shortlist, limit), nil
		out.Path, out.Model = PathDeterministic, ""
	}

	// 5. Validate, falling back to same-category and then to score order.
	// The score-order fallback ignores category but never the gates.
	valid := r.validator.Validate(primary, ids, shortlist)
	if len(valid) == 0 {
		slog.Info("recommend: validator rejected every pick, falling back", "primary", primary.ID)
		reasons = nil
		out.Path = PathSameCategory
		valid = sameCategoryIDs(primary, shortlist, limit)
		if len(valid) == 0 {
			out.Path = PathScoredTop
			valid = r.validator.Safe(primary, scoring.IDs(shortlist), shortlist)
		}
	}
	out.Validated = len(valid)
	metrics.RecordStage("validate", out.Validated)

	// 6. Finalize.
	entries = finalize(valid, shortlist, reasons, limit)
	if len(entries) == 0 {
		out.Path = PathEmpty
	}
	return
}

func (r *Recommender) normalizeLimit(limit int) int {
	if limit <= 0 {
		return r.opts.DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func topIDs(shortlist []scoring.Candidate, limit int) []int64 {
	return scoring.IDs(scoring.Shortlist(shortlist, limit))
}

func sameCategoryIDs(primary catalog.Product, shortlist []scoring.Candidate, limit int) []int64 {
	var out []int64
	for _, c := range shortlist {
		if len(out) == limit {
			break
		}
		if c.Category == primary.Category {
			out = append(out, c.ID)
		}
	}
	return out
}

// finalize maps ids back to shortlist products in order. Ids that are not in
// the shortlist are skipped.
func finalize(ids []int64, shortlist []scoring.Candidate, reasons map[string]string, limit int) []Entry {
	idx := scoring.Index(shortlist)
	entries := make([]Entry, 0, min(len(ids), limit))
	for _, id := range ids {
		if len(entries) == limit {
			break
		}
		pos, ok := idx[id]
		if !ok {
			slog.Warn("recommend: dropping id outside shortlist", "id", id)
			continue
		}
		entries = append(entries, Entry{
			Product: shortlist[pos].Public(),
			Reason:  reasons[strconv.FormatInt(id, 10)],
		})
	}
	return entries
}
