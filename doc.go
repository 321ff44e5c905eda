// Package socialflow drafts social media posts with an LLM, suspends each
// draft for human review and publishes the approved text.
//
// The module is organized into subpackages by domain:
//
//   - workflow: the post workflow, its state and the Runner that drives it
//   - graph: checkpointed state graph with interrupt and resume
//   - checkpoint: thread checkpoint stores (memory, file, SQLite, Redis)
//   - generate: draft generation over the Claude CLI or OpenAI-compatible APIs
//   - publish: X and LinkedIn publishers and an in-memory recorder
//   - platform: per-platform length and hashtag policies
//   - notify: Slack, webhook and log notifications for thread events
//   - auth: signed resume tokens and thread ids
//   - api: HTTP API for generating and reviewing posts
//   - cli: the socialflow command line
//   - config: layered configuration (defaults, files, env, flags)
//   - prompt: prompt template loading with project overrides
//   - task: model selection per generation task
//   - tracing: OpenTelemetry provider setup
//   - http: HTTP client utilities for the platform APIs
//   - errors: user-facing error wrapping for the CLI
//   - testutil: test utilities and fixtures
//
// # Quick Start
//
//	runner, _ := workflow.NewRunner(workflow.RunnerConfig{
//	    Generator:  generator,
//	    Publishers: publish.NewRegistry(publish.NewRecorder(platform.Twitter)),
//	    Store:      checkpoint.NewMemoryStore(),
//	})
//
//	out, _ := runner.Start(ctx, workflow.Request{Topic: "Release notes"})
//	// out.Approval holds the draft; later, from any process sharing the store:
//	out, _ = runner.Resume(ctx, out.ThreadID, "approve")
//
// See individual package documentation for detailed usage.
package socialflow
