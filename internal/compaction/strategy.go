package compaction

import (
	"context"
	"fmt"
	"strings"
)

// Strategy is a pluggable context-compression technique: given a prefix
// of messages being cut from history, produce the digest that replaces
// it. Each strategy trades off fidelity against cost differently;
// Compactor is strategy-agnostic.
type Strategy interface {
	Compress(ctx context.Context, prefix []*Message) (digest string, err error)
}

// ModelSummarizer compresses a prefix by asking a summarizer model for a
// digest, per spec.md §4.5's primary algorithm.
type ModelSummarizer struct {
	Summarizer Summarizer
	Config     *SummarizationConfig
}

// Compress asks the summarizer model to digest prefix into one synthetic
// message's worth of text.
func (m *ModelSummarizer) Compress(ctx context.Context, prefix []*Message) (string, error) {
	return SummarizeWithFallback(ctx, prefix, m.Summarizer, m.Config)
}

// SlidingWindowStrategy drops the prefix entirely rather than
// summarizing it, keeping only a terse marker of how much was dropped.
// Cheapest strategy; loses all detail from the dropped prefix.
type SlidingWindowStrategy struct{}

// Compress returns a one-line marker noting how many messages were
// dropped, with no model call.
func (SlidingWindowStrategy) Compress(ctx context.Context, prefix []*Message) (string, error) {
	if len(prefix) == 0 {
		return DefaultSummaryFallback, nil
	}
	return fmt.Sprintf("[%d earlier messages omitted]", len(prefix)), nil
}

// KeyExtractionStrategy pulls lines that look load-bearing (decisions,
// file paths, errors) out of the prefix via cheap heuristics, skipping a
// model call entirely.
type KeyExtractionStrategy struct {
	// Markers are substrings whose containing line is considered
	// worth keeping; case-sensitive, checked literally.
	Markers []string
}

// DefaultKeyExtractionMarkers covers the signal types a web-app team's
// transcript most often needs recalled verbatim.
var DefaultKeyExtractionMarkers = []string{
	"decision:", "DECISION:", "error:", "Error:", "ERROR", ".go:", ".py:", ".ts:", "next_action",
}

// Compress extracts lines matching Markers (or DefaultKeyExtractionMarkers
// if unset) from prefix's content, joined as the digest.
func (k KeyExtractionStrategy) Compress(ctx context.Context, prefix []*Message) (string, error) {
	markers := k.Markers
	if len(markers) == 0 {
		markers = DefaultKeyExtractionMarkers
	}

	var kept []string
	for _, msg := range prefix {
		for _, line := range strings.Split(msg.Content, "\n") {
			for _, marker := range markers {
				if strings.Contains(line, marker) {
					kept = append(kept, fmt.Sprintf("[%s] %s", msg.Role, strings.TrimSpace(line)))
					break
				}
			}
		}
	}
	if len(kept) == 0 {
		return fmt.Sprintf("[%d earlier messages omitted, no key lines found]", len(prefix)), nil
	}
	return strings.Join(kept, "\n"), nil
}

// HybridStrategy runs KeyExtraction first and falls back to the model
// summarizer only if extraction finds nothing worth keeping, trading
// most of the cost savings of key extraction for the model summarizer's
// fallback coverage.
type HybridStrategy struct {
	KeyExtraction KeyExtractionStrategy
	Fallback      Strategy
}

// Compress tries key extraction, then the fallback strategy if
// extraction found nothing.
func (h HybridStrategy) Compress(ctx context.Context, prefix []*Message) (string, error) {
	digest, err := h.KeyExtraction.Compress(ctx, prefix)
	if err != nil {
		return "", err
	}
	if strings.Contains(digest, "no key lines found") && h.Fallback != nil {
		return h.Fallback.Compress(ctx, prefix)
	}
	return digest, nil
}
