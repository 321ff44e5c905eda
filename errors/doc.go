// Package errors turns workflow, store and platform API failures into
// messages a CLI user can act on.
//
// Core types:
//   - CLIError: Wraps errors with message, suggestion, and details
//   - ErrorMessenger: Interface for customizing error messages
//
// Example usage:
//
//	out, err := runner.Resume(ctx, id, reply)
//	if err != nil {
//	    return errors.Wrap(err, id)
//	}
//
//	if errors.IsAuthError(err) {
//	    // prompt for a new token
//	}
package errors
