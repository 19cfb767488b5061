package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CardExtractor runs OCR-style extraction over a card image and returns the
// provider's raw text response. Decoding that response is the caller's job;
// providers routinely wrap the JSON in markdown fences or extra prose.
type CardExtractor interface {
	ExtractCard(ctx context.Context, prompt, mimeType string, image []byte) (string, error)
}
