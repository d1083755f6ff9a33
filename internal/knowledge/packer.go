package knowledge

import (
	"strings"
	"unicode/utf8"
)

// DefaultTokenDivisor is the character-per-token heuristic used when an entry
// carries no precomputed estimate.
const DefaultTokenDivisor = 4

// EstimateTokens returns the entry's token cost: the precomputed estimate
// when present, otherwise ceil(characters / divisor).
func EstimateTokens(e Entry, divisor int) int {
	if e.TokenEstimate != nil {
		return *e.TokenEstimate
	}
	if divisor <= 0 {
		divisor = DefaultTokenDivisor
	}

	chars := utf8.RuneCountInString(e.Content)
	return (chars + divisor - 1) / divisor
}

// Pack greedily fills a token budget from candidate entries, preserving their
// order. Entries not eligible for automatic packing are passed over, and the
// first eligible entry that would exceed the budget stops packing entirely.
// It returns nil when nothing was packed, so callers can distinguish absent
// knowledge from an empty section.
func Pack(entries []Entry, maxTokens, divisor int) *string {
	if maxTokens <= 0 {
		return nil
	}

	var (
		blocks      []string
		accumulated int
	)

	for _, e := range entries {
		if !e.Active || !e.Usage.Packable() {
			continue
		}

		estimate := EstimateTokens(e, divisor)
		if accumulated+estimate > maxTokens {
			break
		}

		blocks = append(blocks, formatBlock(e))
		accumulated += estimate
	}

	if len(blocks) == 0 {
		return nil
	}

	packed := strings.Join(blocks, "\n\n")
	return &packed
}

func formatBlock(e Entry) string {
	var b strings.Builder

	b.WriteString("## ")
	b.WriteString(e.Name)
	b.WriteString("\n")

	if e.Description != nil && strings.TrimSpace(*e.Description) != "" {
		b.WriteString(*e.Description)
		b.WriteString("\n\n")
	}

	b.WriteString(e.Content)
	return b.String()
}
