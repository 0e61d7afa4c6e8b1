package ports

import "context"

// DedupStore records identities that already received a one-time action.
type DedupStore interface {
	// Has reports whether identity was marked.
	Has(ctx context.Context, identity string) (bool, error)

	// Mark records identity.
	Mark(ctx context.Context, identity string) error

	// MarkIfAbsent atomically records identity and reports whether it was
	// newly marked.
	MarkIfAbsent(ctx context.Context, identity string) (bool, error)
}
