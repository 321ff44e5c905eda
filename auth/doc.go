// Package auth issues the identifiers and tokens that guard a post thread.
//
// Resume tokens are HMAC-signed JWTs bound to a thread id (subject) and the
// step the thread is suspended at. A token from an earlier review round, or
// for another thread, fails verification:
//
//	tokens, err := auth.NewResumeTokens(auth.JWTConfig{
//	    Secret: []byte(os.Getenv("SOCIALFLOW_TOKEN_SECRET")),
//	})
//	g, err := workflow.Build(nodes, store, graph.WithTokens(tokens))
//
// Thread ids are random nanoids with a "post-" prefix.
package auth
