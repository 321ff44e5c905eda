// Package task provides task-based model selection for completion calls.
//
// Drafting a post and revising one use the default tier; extracting
// hashtags is a short structured answer and uses the fast tier.
//
// Example usage:
//
//	models := task.NewTieredModels(model.WithGlobalOverride(model.ModelOpus))
//	name := models.ModelFor(task.Draft)
package task
