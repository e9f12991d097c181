package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/pkg/api"
)

// subscribedStatuses are the membership statuses that classify a user as
// subscribed. Everything else, including a failed lookup, does not.
var subscribedStatuses = map[api.MembershipStatus]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
	"owner":         true,
}

// subscriptionGate classifies a user's membership in the configured channel
// and persists the resulting flag onto the user record.
type subscriptionGate struct {
	checker   api.MembershipChecker
	users     persistence.UserStore
	events    persistence.EventStore
	channelID int64
	logger    *slog.Logger
}

// Check queries the membership backend and returns the classification. A
// query error yields SubscriptionUnknown: the caller branches as if the user
// were unsubscribed, and the error is recorded as an event rather than
// aborting the funnel.
func (g *subscriptionGate) Check(ctx context.Context, userID int64) api.Subscription {
	if g.checker == nil {
		return api.SubscriptionUnknown
	}

	status, err := g.checker.Membership(ctx, g.channelID, userID)
	if err != nil {
		g.logger.ErrorContext(ctx, "membership_check_failed",
			slog.Int64("user_id", userID),
			slog.Int64("channel_id", g.channelID),
			slog.Any("error", err),
		)
		g.appendEvent(ctx, userID, "system_membership_error", err.Error())
		g.persist(ctx, userID, api.SubscriptionUnknown)
		return api.SubscriptionUnknown
	}

	sub := api.SubscriptionNo
	if subscribedStatuses[status] {
		sub = api.SubscriptionYes
	}
	g.persist(ctx, userID, sub)
	return sub
}

// persist overwrites the flag on the user record. Re-checking is idempotent.
func (g *subscriptionGate) persist(ctx context.Context, userID int64, sub api.Subscription) {
	if err := g.users.SetSubscription(ctx, userID, sub, time.Now()); err != nil {
		g.logger.ErrorContext(ctx, "subscription_persist_failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}
}

func (g *subscriptionGate) appendEvent(ctx context.Context, userID int64, action, details string) {
	err := g.events.AppendEvent(ctx, api.EventLogEntry{
		UserID:    userID,
		Timestamp: time.Now(),
		Action:    action,
		Details:   details,
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "event_append_failed",
			slog.Int64("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}
