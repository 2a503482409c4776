// Package classifier implements the two-stage hybrid pipeline: every bio
// goes through the keyword stage, and only the bios the keyword stage
// cannot decide are batched into a single AI call. AI failures never
// surface to the caller — affected bios resolve to the conservative "no".
package classifier

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"bioclass/internal/keyword"
	"bioclass/internal/llm"
	"bioclass/internal/prompt"
)

// Labels exposed to callers. The keyword stage's "uncertain" state is
// always resolved before a result leaves this package.
const (
	LabelYes = "yes"
	LabelNo  = "no"
)

// DefaultResolveTimeout bounds the single AI call per batch. There is no
// retry: on timeout the batch falls back to the conservative default.
const DefaultResolveTimeout = 30 * time.Second

// ErrEmptyBatch is returned for an empty input batch.
var ErrEmptyBatch = errors.New("bios must not be empty")

// Service is the hybrid classification service.
type Service struct {
	resolver llm.Resolver
	prompts  *prompt.Store
	logger   *slog.Logger

	// Timeout bounds the AI stage. Tests shrink it; everyone else
	// should leave the default alone.
	Timeout time.Duration
}

// New creates a classification service. The resolver is the only
// component that performs I/O; keyword checks are local and free.
func New(resolver llm.Resolver, prompts *prompt.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		prompts:  prompts,
		logger:   logger,
		Timeout:  DefaultResolveTimeout,
	}
}

// Classify labels each bio "yes" or "no", preserving input order, using
// the store's current prompt for the AI stage.
func (s *Service) Classify(ctx context.Context, bios []string) ([]string, error) {
	return s.ClassifyWith(ctx, bios, "")
}

// ClassifyWith is Classify with an optional per-call prompt override.
// An empty override means the store's current prompt. The override never
// touches the store; it lives only for this call.
func (s *Service) ClassifyWith(ctx context.Context, bios []string, promptOverride string) ([]string, error) {
	if len(bios) == 0 {
		return nil, ErrEmptyBatch
	}

	// Stage 1: keyword pass over every bio.
	results := make([]string, len(bios))
	var uncertainIdx []int
	var uncertainBios []string

	for i, bio := range bios {
		switch keyword.Check(bio) {
		case keyword.Yes:
			results[i] = LabelYes
		case keyword.No:
			results[i] = LabelNo
		default:
			uncertainIdx = append(uncertainIdx, i)
			uncertainBios = append(uncertainBios, cleanBio(bio))
		}
	}

	// Fast path: everything decided locally, no AI call, no cost.
	if len(uncertainIdx) == 0 {
		return results, nil
	}

	// Stage 2: one AI call for the uncertain sub-batch.
	p := promptOverride
	if strings.TrimSpace(p) == "" {
		p = s.prompts.Get()
	}

	batchID := uuid.New().String()
	s.logger.Debug("resolving uncertain bios",
		"batch", batchID,
		"total", len(bios),
		"keyword_decided", len(bios)-len(uncertainIdx),
		"uncertain", len(uncertainIdx),
	)

	resolveCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	labels, err := s.resolver.Resolve(resolveCtx, p, uncertainBios)
	if err != nil {
		// Conservative default: an unreachable or misbehaving AI
		// service must degrade classification, not break it.
		s.logger.Warn("AI stage failed, defaulting uncertain bios to no",
			"batch", batchID,
			"uncertain", len(uncertainIdx),
			"error", err,
		)
		labels = nil
	}

	// Merge: sub-batch numbering is 1-based and index-stable, so the
	// k-th uncertain bio answers under number k+1. Anything the model
	// didn't answer usably stays "no".
	for k, i := range uncertainIdx {
		if label, ok := labels[k+1]; ok && label == LabelYes {
			results[i] = LabelYes
		} else {
			results[i] = LabelNo
		}
	}

	return results, nil
}

// cleanBio strips punctuation and collapses whitespace before a bio is
// sent to the AI stage. Numbering in the request is line-based, so
// embedded newlines must not survive.
func cleanBio(bio string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return r
		default:
			return ' '
		}
	}, bio)
	return strings.Join(strings.Fields(mapped), " ")
}
