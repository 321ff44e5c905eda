// Package prompt loads the templates used to draft posts.
//
// Templates are text/template files named <name>.txt. Project overrides in
// .socialflow/prompts/ or prompts/ win over the embedded defaults:
//
//   - system_<platform>: system prompt per platform
//   - draft: the drafting request (Platform, Topic, Tone, ExtraContext, Notes)
//   - hashtags: the hashtag request (Platform, Body, Count)
//
// Example usage:
//
//	loader := prompt.NewLoader(".")
//	text, err := loader.LoadWithVars("hashtags", map[string]any{
//	    "Platform": "twitter",
//	    "Body":     draft,
//	    "Count":    3,
//	})
package prompt
