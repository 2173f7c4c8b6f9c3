package perplexity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
)

// Search modes sent in the "mode" parameter.
const (
	modeConcise = "concise"
	modeCopilot = "copilot"
)

type tierModel struct {
	tier  api.ModelTier
	model string
}

// modelPreferences maps a tier and optional model name to the backend's
// model_preference identifier. The empty model selects the tier default.
// Named models on the quick tier run as a pro search.
var modelPreferences = map[tierModel]string{
	{api.ModelTierQuick, ""}:                  "turbo",
	{api.ModelTierQuick, "pro"}:               "pplx_pro",
	{api.ModelTierQuick, "sonar"}:             "experimental",
	{api.ModelTierQuick, "gpt-5.2"}:           "gpt52",
	{api.ModelTierQuick, "claude-4.5-sonnet"}: "claude45sonnet",
	{api.ModelTierQuick, "grok-4.1"}:          "grok41nonreasoning",

	{api.ModelTierResearch, ""}: "pplx_alpha",

	{api.ModelTierReasoning, ""}:                           "pplx_reasoning",
	{api.ModelTierReasoning, "gpt-5.2-thinking"}:           "gpt52_thinking",
	{api.ModelTierReasoning, "claude-4.5-sonnet-thinking"}: "claude45sonnetthinking",
	{api.ModelTierReasoning, "gemini-3.0-pro"}:             "gemini30pro",
	{api.ModelTierReasoning, "kimi-k2-thinking"}:           "kimik2thinking",
	{api.ModelTierReasoning, "grok-4.1-reasoning"}:         "grok41reasoning",
}

// modePreference resolves the mode and model_preference for a query.
// Only the default quick search runs in concise mode.
func modePreference(tier api.ModelTier, model string) (mode, preference string, err error) {
	model = strings.ToLower(strings.TrimSpace(model))
	pref, ok := modelPreferences[tierModel{tier, model}]
	if !ok {
		valid := Models(tier)
		if len(valid) == 0 {
			return "", "", api.NewValidationError(api.CodeInvalidModel,
				fmt.Sprintf("tier %q does not accept a model, got %q", tier, model))
		}
		return "", "", api.NewValidationError(api.CodeInvalidModel,
			fmt.Sprintf("model %q is not available for tier %q (valid: %s)",
				model, tier, strings.Join(valid, ", ")))
	}
	if tier == api.ModelTierQuick && model == "" {
		return modeConcise, pref, nil
	}
	return modeCopilot, pref, nil
}

// Models lists the named models selectable for tier, sorted.
func Models(tier api.ModelTier) []string {
	var out []string
	for k := range modelPreferences {
		if k.tier == tier && k.model != "" {
			out = append(out, k.model)
		}
	}
	sort.Strings(out)
	return out
}
