// Package services – SuggestionService
//
// SuggestionService answers the medication-name autocomplete. Results come
// from a fresh cache entry, else from the remote lookup (cached afterwards),
// else from the local vocabulary index. It never fails: any error degrades
// to fewer or no suggestions.
package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/rxnorm"
	"github.com/tbourn/healthline/internal/search"
)

// Suggestion limits.
const (
	MinQueryRunes  = 3
	MaxSuggestions = 10
)

// Lookup resolves free text to candidate concepts (see rxnorm.Client).
type Lookup interface {
	ApproximateTerm(ctx context.Context, term string, max int) ([]rxnorm.Candidate, error)
}

// SuggestionService serves name suggestions.
type SuggestionService struct {
	DB     *gorm.DB
	Clock  clock.Clock
	Lookup Lookup       // optional
	Index  search.Index // optional local fallback
	TTL    time.Duration
}

// Suggest returns up to MaxSuggestions candidates for query. Queries are
// trimmed and lowercased; shorter than MinQueryRunes yields an empty list.
// The second result reports where the answer came from: "cache", "remote",
// "local" or "none".
func (s *SuggestionService) Suggest(ctx context.Context, query string) ([]domain.Suggestion, string) {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryRunes {
		return []domain.Suggestion{}, "none"
	}
	ctx, span := otel.Tracer("services/SuggestionService").Start(ctx, "Suggest",
		trace.WithAttributes(attribute.String("query", q)))
	defer span.End()

	now := s.Clock.Now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	if c, err := repo.GetSuggestionCache(ctx, s.DB, q); err == nil && c.Fresh(now, ttl) {
		var cached []domain.Suggestion
		if json.Unmarshal([]byte(c.ResponseJSON), &cached) == nil {
			span.SetAttributes(attribute.String("source", "cache"))
			return nonNil(cached), "cache"
		}
	}

	if s.Lookup != nil {
		cands, err := s.Lookup.ApproximateTerm(ctx, q, MaxSuggestions)
		if err == nil {
			out := fromCandidates(cands)
			if b, err := json.Marshal(out); err == nil {
				// Cache failures only cost a future remote call.
				_ = repo.UpsertSuggestionCache(ctx, s.DB, q, string(b), now)
			}
			if s.Index != nil {
				for _, sg := range out {
					s.Index.Add(search.Entry{Name: sg.Name, Code: sg.Code})
				}
			}
			span.SetAttributes(attribute.String("source", "remote"))
			return out, "remote"
		}
		span.RecordError(err)
	}

	if s.Index != nil {
		res := s.Index.TopK(q, MaxSuggestions)
		out := make([]domain.Suggestion, 0, len(res))
		for _, r := range res {
			out = append(out, domain.Suggestion{Name: r.Name, Code: r.Code})
		}
		span.SetAttributes(attribute.String("source", "local"))
		return out, "local"
	}
	return []domain.Suggestion{}, "none"
}

// fromCandidates drops blanks and repeated codes, keeping order, and caps
// the list at MaxSuggestions.
func fromCandidates(cands []rxnorm.Candidate) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		code, name := strings.TrimSpace(c.RxCUI), strings.TrimSpace(c.Name)
		if code == "" || name == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, domain.Suggestion{Name: name, Code: code})
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

func nonNil(s []domain.Suggestion) []domain.Suggestion {
	if s == nil {
		return []domain.Suggestion{}
	}
	return s
}
