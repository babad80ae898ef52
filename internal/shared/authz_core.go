package shared

// Transaction capabilities.
const (
	PermTransactionsView    = "can_view_transactions"
	PermTransactionsInput   = "can_input_transactions"
	PermTransactionsApprove = "can_approve_transactions"
)

// TransactionScopes lists all permissions related to transactions.
func TransactionScopes() []string {
	return []string{
		PermTransactionsView,
		PermTransactionsInput,
		PermTransactionsApprove,
	}
}
