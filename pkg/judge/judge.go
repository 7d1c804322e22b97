// Package judge wraps the external semantic-inference endpoint the
// reconciliation pipeline treats as a black-box oracle. One request is one
// response; the pipeline never streams and never retries above the
// transport layer.
package judge

import "context"

// Judge is the single operation the pipeline consumes: a synchronous
// completion call returning parsed JSON (object or array). Implementations
// must run the raw response through ParseJSON before returning it, so
// callers only ever see recovered, well-formed values.
type Judge interface {
	CompleteJSON(ctx context.Context, msgs []Message) (any, error)
}

// Message is a single role-tagged text message in a judge request.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// System and User build messages for the two roles the pipeline uses.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }
