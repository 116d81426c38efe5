package domain

// Action names an operation the access gate authorizes.
type Action string

const (
	ActionSubmitTransaction     Action = "transaction.submit"
	ActionViewOwnTransactions   Action = "transaction.view_own"
	ActionViewAllTransactions   Action = "transaction.view_all"
	ActionTransitionTransaction Action = "transaction.transition"
	ActionDeleteTransaction     Action = "transaction.delete"
	ActionFundUser              Action = "user.fund"
	ActionManageUsers           Action = "user.manage"
	ActionManageBots            Action = "bot.manage"
	ActionViewBots              Action = "bot.view"
	ActionViewMetrics           Action = "system.metrics"
)

var adminOnly = map[Action]bool{
	ActionViewAllTransactions:   true,
	ActionTransitionTransaction: true,
	ActionDeleteTransaction:     true,
	ActionFundUser:              true,
	ActionManageUsers:           true,
	ActionManageBots:            true,
	ActionViewMetrics:           true,
}

// Allowed is the single authorization policy: admins may do everything,
// users everything that is not admin-only.
func Allowed(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return !adminOnly[action]
	default:
		return false
	}
}

// Authorize returns ErrForbidden when the actor may not perform action.
func Authorize(actor Actor, action Action) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !Allowed(actor.Role, action) {
		return ErrForbidden
	}
	return nil
}
