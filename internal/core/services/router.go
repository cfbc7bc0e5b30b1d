package services

import (
	"sort"
	"strings"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// ErrNoCandidates is returned when filtering leaves no routable model. The
// router fails fast rather than fabricating a match. It is classified so
// the transport layer maps it to 404 instead of a generic 500.
var ErrNoCandidates = &domain.Error{
	Kind:    domain.ErrProviderNotFound,
	Message: "no models match constraints",
}

// Router resolves a record set plus constraints into a primary model and an
// ordered fallback chain. It is a pure function of its inputs: no I/O, no
// mutation, deterministic.
type Router struct{}

// Resolve filters and orders candidates. The first survivor is the primary;
// the rest, in order, are the fallback chain.
func (Router) Resolve(records []domain.ModelRecord, req domain.ResolutionRequest) (domain.ResolvedModel, error) {
	candidates := filterRecords(records, req)
	if len(candidates) == 0 {
		return domain.ResolvedModel{}, ErrNoCandidates
	}
	out := domain.ResolvedModel{Primary: candidates[0]}
	if len(candidates) > 1 {
		out.Fallback = candidates[1:]
	}
	return out, nil
}

// filterRecords applies the constraint pipeline in a fixed order, then
// sorts by preferred-list index, price score, and display name.
//
// Note the preferred list acts as a hard allow-list, not a ranking hint:
// when non-empty it excludes every unlisted record. Callers that want
// preference-only ordering must leave it empty and reorder the fallback
// chain themselves.
func filterRecords(records []domain.ModelRecord, req domain.ResolutionRequest) []domain.ModelRecord {
	allowPreview := true
	if req.Constraints.AllowPreview != nil {
		allowPreview = *req.Constraints.AllowPreview
	}
	preferred := normalizePreferred(req.PreferredModels)

	candidates := make([]domain.ModelRecord, 0, len(records))
	for _, r := range records {
		if !r.Availability.Entitled {
			continue
		}
		if req.Constraints.RequireTools && !r.Features.Tools {
			continue
		}
		if req.Constraints.RequireJSON && !(r.Features.JSONMode || r.Features.JSONSchema) {
			continue
		}
		if req.Constraints.RequireVision && !r.Modalities.Vision {
			continue
		}
		if req.Constraints.RequireVideo && !r.Modalities.VideoOut {
			continue
		}
		if !allowPreview && r.HasTag("preview") {
			continue
		}
		if req.Constraints.MaxCostUSD > 0 && !withinCost(r, req.Constraints.MaxCostUSD) {
			continue
		}
		if len(preferred) > 0 && preferredRank(r, preferred) >= len(preferred) {
			continue
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := preferredRank(candidates[i], preferred), preferredRank(candidates[j], preferred)
		if ri != rj {
			return ri < rj
		}
		pi, pj := priceScore(candidates[i]), priceScore(candidates[j])
		if pi != pj {
			return pi < pj
		}
		return candidates[i].DisplayName < candidates[j].DisplayName
	})
	return candidates
}

func normalizePreferred(models []string) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// preferredRank returns the index of the record in the preferred list,
// matching either the qualified id or the provider model id; unlisted
// records rank past the end.
func preferredRank(r domain.ModelRecord, preferred []string) int {
	for idx, entry := range preferred {
		if entry == r.ID || entry == r.ProviderModelID {
			return idx
		}
	}
	return len(preferred)
}

// withinCost checks both declared price axes; a missing price satisfies
// the constraint.
func withinCost(r domain.ModelRecord, maxCost float64) bool {
	if r.Pricing == nil {
		return true
	}
	if r.Pricing.InputPer1M > 0 && r.Pricing.InputPer1M > maxCost {
		return false
	}
	if r.Pricing.OutputPer1M > 0 && r.Pricing.OutputPer1M > maxCost {
		return false
	}
	return true
}

// priceScore is the cheaper declared per-million price; records with no
// pricing score 0 and therefore sort first within their preference rank.
func priceScore(r domain.ModelRecord) float64 {
	if r.Pricing == nil {
		return 0
	}
	score := 0.0
	if r.Pricing.InputPer1M > 0 {
		score = r.Pricing.InputPer1M
	}
	if r.Pricing.OutputPer1M > 0 && (score == 0 || r.Pricing.OutputPer1M < score) {
		score = r.Pricing.OutputPer1M
	}
	return score
}
