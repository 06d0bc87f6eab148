package embedder

import (
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"gemini-2",
	"gemini-1",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check on resolved settings. It logs a warning when
// the embedding backend was silently inherited from MODEL_PROVIDER, when the
// model looks like a chat model, or when the configured collection size does
// not match what the backend produces. Hard errors surface earlier, from
// SettingsFromEnv.
func Validate(log *slog.Logger, s *Settings, collectionDim int) {
	if os.Getenv("EMBEDDING_PROVIDER") == "" && os.Getenv("MODEL_PROVIDER") != "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", s.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER explicitly"),
		)
	}

	if looksLikeChatModel(s.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", s.Model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-3-large, nomic-embed-text"),
		)
	}

	if collectionDim > 0 && s.Dimensions > 0 && collectionDim != s.Dimensions {
		log.Warn("embedder: embedding dimensions differ from the collection size, upserts will fail",
			slog.Int("embedding_dimensions", s.Dimensions),
			slog.Int("collection_dimensions", collectionDim),
		)
	}
}
