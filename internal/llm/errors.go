package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failure categories surfaced by model calls.
type ErrorKind int

const (
	// KindGeneric is any model failure without a more specific remediation.
	KindGeneric ErrorKind = iota
	// KindOutOfMemory means the runtime could not allocate memory for the model.
	KindOutOfMemory
	// KindModelNotFound means the model is not pulled or its name is wrong.
	KindModelNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindOutOfMemory:
		return "out_of_memory"
	case KindModelNotFound:
		return "model_not_found"
	default:
		return "generic"
	}
}

// Classification keywords, matched case-insensitively against the upstream message
// in this order. Ollama reports failures as plain text, so the wording is the contract:
//
//	"memory"             -> KindOutOfMemory
//	"not found", "model" -> KindModelNotFound
//	anything else        -> KindGeneric
var (
	outOfMemoryKeywords   = []string{"memory"}
	modelNotFoundKeywords = []string{"not found", "model"}
)

// Classify maps an error message to an ErrorKind using the keyword contract.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, outOfMemoryKeywords) {
		return KindOutOfMemory
	}
	if containsAny(msg, modelNotFoundKeywords) {
		return KindModelNotFound
	}
	return KindGeneric
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Error is returned by Model and Embedder for every upstream failure.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError classifies err and wraps it as *Error. Returns nil for nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: Classify(err), Err: err}
}

// KindOf reports the kind of a model error. ok is false when err did not come
// from a model or embedding call.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindGeneric, false
}
