package task

import (
	"github.com/randalmurphal/llmkit/model"
)

// Type is the kind of completion call being made.
// It determines which model tier is appropriate.
type Type string

const (
	// Long-form copy - default tier
	Draft  Type = "draft"
	Revise Type = "revise"

	// Short structured output - fast tier
	Hashtags Type = "hashtags"
)

// DefaultModelMap maps task types to default models.
var DefaultModelMap = map[Type]model.ModelName{
	Draft:    model.ModelSonnet,
	Revise:   model.ModelSonnet,
	Hashtags: model.ModelHaiku,
}

// TierForTask returns the appropriate tier for a task type.
func TierForTask(t Type) model.Tier {
	switch t {
	case Hashtags:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector using the task-to-tier mapping.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if t, ok := task.(Type); ok {
				return TierForTask(t)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel selects the default model for a task type.
func SelectModel(t Type) model.ModelName {
	if m, ok := DefaultModelMap[t]; ok {
		return m
	}
	if TierForTask(t) == model.TierFast {
		return model.ModelHaiku
	}
	return model.ModelSonnet
}

// Models picks the model name sent with each completion call.
type Models interface {
	ModelFor(t Type) string
}

// FixedModel sends the same model name for every task. Used with providers
// whose model names aren't in the tier table (e.g. OpenAI).
type FixedModel string

// ModelFor implements Models.
func (m FixedModel) ModelFor(Type) string {
	return string(m)
}

// TieredModels selects per task through a model.Selector.
type TieredModels struct {
	Selector *model.Selector
}

// NewTieredModels builds TieredModels with optional selector overrides.
func NewTieredModels(opts ...model.SelectorOption) TieredModels {
	return TieredModels{Selector: NewSelector(opts...)}
}

// ModelFor implements Models.
func (m TieredModels) ModelFor(t Type) string {
	if m.Selector == nil {
		return string(SelectModel(t))
	}
	return string(m.Selector.Select(t))
}
