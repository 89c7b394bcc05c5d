package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/sells-group/postcall-cli/internal/resilience"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
)

// validatable is implemented by every generated payload schema.
type validatable interface {
	Validate() error
}

// completer bundles the completion client with the per-stage call policy:
// bounded timeout per external call and transient-error retry.
type completer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	timeout   time.Duration
}

// completeJSON sends one prompt, parses the response into out, and validates
// it. Transient failures are retried per the completer's policy; a response
// that parses but violates the schema surfaces as a ValidationError for the
// stage to handle with its reinforced retry.
func (c *completer) completeJSON(ctx context.Context, schema, system, prompt string, out validatable) (anthropic.TokenUsage, error) {
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.ai.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    system,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return anthropic.TokenUsage{}, err
	}

	usage := resp.Usage
	text := cleanJSON(anthropic.ExtractText(resp))
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return usage, &resilience.ValidationError{Schema: schema, Err: err}
	}
	if err := out.Validate(); err != nil {
		return usage, err
	}
	return usage, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// reinforcePrompt appends an explicit format-compliance instruction after a
// schema validation failure. Used for the single reinforced retry each
// generation stage is allowed.
func reinforcePrompt(prompt string, cause error) string {
	return prompt + "\n\nIMPORTANT: Your previous response did not match the required JSON schema (" +
		cause.Error() + "). Respond with ONLY a valid JSON object matching the schema above. " +
		"No prose, no markdown fences, no trailing commentary."
}

// TranscriptHash returns the hex SHA-256 of a transcript, used to correlate
// stored runs without persisting the transcript itself.
func TranscriptHash(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}
