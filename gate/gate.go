// Package gate is a small Gate/Policy authorization registry. A Gate maps
// resource kinds to policies; each policy decides whether a subject may
// perform an action on a resource. The package knows nothing about domain
// models, so the subject type is a type parameter:
//   - Gate[uint] for plain user-id checks
//   - Gate[*User] when policies need the full principal
package gate

import (
	"context"
	"errors"
)

// Action describes the kind of operation a subject wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutating reports whether the action writes to the resource.
func (a Action) Mutating() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Policy decides authorization for one resource kind.
// For list/create checks resource may be nil.
type Policy[U any] interface {
	Can(ctx context.Context, subject U, action Action, resource any) bool
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc[U any] func(ctx context.Context, subject U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, subject U, action Action, resource any) bool {
	return f(ctx, subject, action, resource)
}

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Gate is the central authorization checkpoint. U must be comparable so a
// zero-value subject (absent principal) can be rejected before any policy runs.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// New creates an empty Gate ready to register policies.
func New[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds a policy for a resource kind, replacing any existing one.
func (g *Gate[U]) Register(kind string, p Policy[U]) {
	g.policies[kind] = p
}

// Authorize returns nil if subject may perform action on resource.
// A zero-value subject is always denied; an unregistered kind is an error
// rather than a silent allow.
func (g *Gate[U]) Authorize(ctx context.Context, subject U, action Action, kind string, resource any) error {
	var zero U
	if subject == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[kind]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, subject, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, subject U, action Action, kind string, resource any) bool {
	return g.Authorize(ctx, subject, action, kind, resource) == nil
}
