package events

// Event enumerates high-level topics inside the platform.
type Event string

const (
	// EventNotification carries a rendered Notification for one user.
	EventNotification Event = "notification"
	// EventTransactionUpdate fires after a transaction is created or changes status.
	EventTransactionUpdate Event = "transaction.update"
	// EventBalanceUpdate fires after a committed balance change.
	EventBalanceUpdate Event = "balance.update"
)
