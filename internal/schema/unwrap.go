package schema

import "strings"

// UnwrapFence strips a single leading/trailing markdown code fence from
// text. Models often wrap JSON in ```json ... ``` blocks even when told
// not to. Both tagged and untagged fences are tolerated; text without a
// fence is returned unchanged, so the operation is idempotent.
func UnwrapFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// An untagged fence may still open with a language identifier on
		// its first line. A short first line with no spaces and no JSON
		// punctuation is treated as one.
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") && !strings.Contains(firstLine, "[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}
