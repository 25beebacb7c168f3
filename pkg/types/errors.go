package types

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for type validation
var (
	ErrMissingTitle = errors.New("title is required")
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Kind classifies a failure independently of where it happened
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified error
type Error struct {
	Kind Kind
	Op   string // Operation that failed, e.g. "get_package_info"

	// Validation details
	Field    string
	Expected string

	// NotFound details
	Package string
	Version string

	// Upstream details
	RateLimited bool
	Retryable   bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	switch e.Kind {
	case KindValidation:
		fmt.Fprintf(&b, "invalid %s", e.Field)
		if e.Expected != "" {
			fmt.Fprintf(&b, ": expected %s", e.Expected)
		}
	case KindNotFound:
		fmt.Fprintf(&b, "package %q not found", e.Package)
		if e.Version != "" {
			fmt.Fprintf(&b, " at version %s", e.Version)
		}
	case KindUpstream:
		if e.RateLimited {
			b.WriteString("upstream rate limit exceeded")
		} else {
			b.WriteString("upstream request failed")
		}
	default:
		b.WriteString("internal error")
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation reports a caller supplied parameter outside its domain
func NewValidation(op, field, expected string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Expected: expected}
}

// NewNotFound reports a missing package
func NewNotFound(op, pkg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Package: pkg}
}

// NewUpstream wraps a failed external call. Upstream errors are retryable.
func NewUpstream(op string, rateLimited bool, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, RateLimited: rateLimited, Retryable: true, Err: err}
}

// NewInternal wraps an unexpected condition
func NewInternal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsRateLimited reports whether err is an upstream rate limit failure
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUpstream && e.RateLimited
}
