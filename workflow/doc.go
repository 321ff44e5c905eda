// Package workflow implements the post approval workflow: draft a post,
// suspend for human review, then publish, regenerate or give up.
//
// Core types:
//   - State: the record threaded through every node
//   - Update: a node's partial change to State, applied by Merge
//   - Feedback: a reviewer's normalized decision
//   - ApprovalRequest: the payload a thread suspends with
//   - Runner: start, resume, continue and inspect threads
//
// Workflow nodes:
//   - draft: generates a candidate post, bounded by MaxAttempts
//   - request_approval: suspends until a reviewer replies
//   - apply_feedback: maps the reply to approved, draft or failed
//   - publish: posts the approved text, once
//
// Example usage:
//
//	runner, err := workflow.NewRunner(workflow.RunnerConfig{
//	    Generator:  generator,
//	    Publishers: publish.NewRegistry(xPublisher),
//	    Store:      checkpoint.NewMemoryStore(),
//	})
//	out, err := runner.Start(ctx, workflow.Request{
//	    Topic:    "Why we moved our CI to ephemeral runners",
//	    Platform: platform.Twitter,
//	})
//	// out.Approval holds the draft to review
//	out, err = runner.Resume(ctx, out.ThreadID, "approve")
//	// out.State.PublishedURL
package workflow
