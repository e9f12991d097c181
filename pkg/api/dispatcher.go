package api

import "context"

// Dispatcher is the outbound message transport consumed by the engine.
//
// Implementations wrap a concrete messaging backend (the production adapter
// wraps the Telegram Bot API). The engine depends only on these operations
// and their success/error outcome; delivery is best-effort and a failed send
// never blocks a stage transition.
type Dispatcher interface {
	// SendText sends a plain text message, optionally with inline buttons.
	SendText(ctx context.Context, userID int64, text string, buttons ...Button) error

	// SendDocument sends a document by opaque file reference or URL.
	SendDocument(ctx context.Context, userID int64, file string, caption string) error

	// SendMediaNote sends a short media note by opaque reference.
	SendMediaNote(ctx context.Context, userID int64, mediaRef string) error
}

// MembershipStatus is the raw status string reported by the membership
// backend for a (channel, user) pair.
type MembershipStatus string

// MembershipChecker queries membership of a user in a channel. A returned
// error means the status could not be determined; callers decide how to
// branch on that.
type MembershipChecker interface {
	Membership(ctx context.Context, channelID int64, userID int64) (MembershipStatus, error)
}
