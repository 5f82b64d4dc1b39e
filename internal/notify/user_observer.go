package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// UserObserver turns events into messages for the affected user.
type UserObserver struct {
	sender Sender
	logger *slog.Logger
}

func NewUserObserver(sender Sender, logger *slog.Logger) *UserObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserObserver{sender: sender, logger: logger}
}

func (o *UserObserver) Update(ctx context.Context, ev Event) {
	subject, message, ok := Render(ev)
	if !ok {
		return
	}
	if err := o.sender.Send(ctx, ev.UserID, subject, message); err != nil {
		o.logger.ErrorContext(ctx, "send notification",
			"event", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// Render returns the subject and body for ev. ok is false for events that
// do not address a user.
func Render(ev Event) (subject, message string, ok bool) {
	title := ev.ItemTitle
	if title == "" {
		title = ev.ItemID.String()
	}

	switch ev.Type {
	case ReservationAvailable:
		return "Reserved item now available",
			fmt.Sprintf("The item '%s' you reserved is now available for borrowing.", title), true
	case DueDateApproaching:
		if ev.DueDate == nil {
			return "", "", false
		}
		return "Due date approaching",
			fmt.Sprintf("Reminder: '%s' is due on %s. Please return or renew it in time.",
				title, ev.DueDate.Format("2006-01-02 15:04 MST")), true
	case BookReturnedNotifyNext:
		return "Item returned, you're next",
			fmt.Sprintf("'%s' has been returned. You're next in line to borrow it!", title), true
	case ReservationExpired:
		return "Reservation expired",
			fmt.Sprintf("Your reservation for '%s' has expired.", title), true
	case ReservationQueueUpdated:
		return "Reservation queue updated",
			fmt.Sprintf("The reservation queue for '%s' has changed.", title), true
	}
	return "", "", false
}
