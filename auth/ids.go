package auth

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ThreadIDPrefix starts every generated thread id.
const ThreadIDPrefix = "post-"

const threadIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewThreadID returns a random, URL and file name safe thread id such as
// "post-4f9x2k1m8q7z".
func NewThreadID() (string, error) {
	id, err := nanoid.Generate(threadIDAlphabet, 12)
	if err != nil {
		return "", fmt.Errorf("generate thread id: %w", err)
	}
	return ThreadIDPrefix + id, nil
}
