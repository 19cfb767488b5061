package app

import (
	"context"
	"fmt"
	"strings"
)

// Summarize condenses a transcript into a single interest-focused
// paragraph. Model failure degrades to a placeholder rather than failing
// the audio pipeline.
func (a *App) Summarize(ctx context.Context, transcript string) string {
	prompt := fmt.Sprintf(
		"Summarize the following conversation in a single paragraph focusing on the user's interest in the product:\n\n%s",
		transcript)
	raw, err := a.generator.GenerateText(ctx, "", prompt)
	if err != nil {
		a.logger.Warn("transcript summarization failed", "error", err)
		return "Summary unavailable: " + err.Error()
	}
	return strings.TrimSpace(raw)
}
