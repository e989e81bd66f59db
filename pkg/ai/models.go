// ABOUTME: Built-in model definitions for the supported providers
// ABOUTME: Provides defaults for Anthropic and OpenAI models with O(1) lookup by ID

package ai

// Built-in model definitions.
var (
	ModelClaudeOpus = Model{
		ID:              "claude-opus-4-6",
		Name:            "Claude Opus 4.6",
		Api:             ApiAnthropic,
		MaxTokens:       200000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}

	ModelClaudeSonnet = Model{
		ID:              "claude-sonnet-4-6",
		Name:            "Claude Sonnet 4.6",
		Api:             ApiAnthropic,
		MaxTokens:       200000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}

	ModelClaudeHaiku = Model{
		ID:              "claude-haiku-4-5-20251001",
		Name:            "Claude Haiku 4.5",
		Api:             ApiAnthropic,
		MaxTokens:       200000,
		MaxOutputTokens: 8192,
		SupportsTools:   true,
	}

	ModelGPT4o = Model{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		Api:             ApiOpenAI,
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}

	ModelGPT4oMini = Model{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o Mini",
		Api:             ApiOpenAI,
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}
)

// BuiltinModels returns all built-in model definitions.
func BuiltinModels() []Model {
	return []Model{
		ModelClaudeOpus,
		ModelClaudeSonnet,
		ModelClaudeHaiku,
		ModelGPT4o,
		ModelGPT4oMini,
	}
}

// modelIndex is a pre-built map for O(1) model lookups by ID.
var modelIndex = func() map[string]*Model {
	models := BuiltinModels()
	idx := make(map[string]*Model, len(models))
	for i := range models {
		idx[models[i].ID] = &models[i]
	}
	return idx
}()

// FindModel looks up a model by ID from the built-in list.
// Returns nil if not found.
func FindModel(id string) *Model {
	return modelIndex[id]
}

// ResolveModel returns the built-in model with the given ID, or an ad-hoc
// definition for the given API when the ID is not in the catalog.
func ResolveModel(id string, api Api) *Model {
	if m := FindModel(id); m != nil {
		cp := *m
		return &cp
	}
	return &Model{ID: id, Name: id, Api: api, MaxOutputTokens: 4096, SupportsTools: true}
}
