// Package config resolves socialflow settings from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags
//  2. SOCIALFLOW_* environment variables
//  3. Local config: .socialflow.yaml in the git root
//  4. Global config: ~/.config/socialflow/config.yaml
//  5. Built-in defaults
//
// Keys holding credentials (API keys, platform tokens, signing secrets) are
// refused in the local file, which is usually committed.
//
// # Usage
//
//	r := config.NewResolver(config.ResolverConfig{})
//	resolved := r.ResolveWithFlags(map[string]string{"store_backend": flagStore})
//	settings, err := config.Load(resolved)
//
// Each resolved value records its Source, which `socialflow config get`
// prints alongside the value.
package config
