package ledger

// Category lists offered by the entry forms.
var (
	CreditCategories = []string{
		"Salary", "Investment Return", "Freelance", "Business Income", "Refund", "Gift", "Other Income",
	}
	DebitCategories = []string{
		"Food & Dining", "Transportation", "Shopping", "Bills & Utilities", "Healthcare",
		"Entertainment", "Education", "Investment", "Other Expense",
	}
	ExpenseCategories = []string{
		"Food", "Transport", "Shopping", "Entertainment", "Bills", "Healthcare", "Education", "Other",
	}
)

// DefaultCategories groups the lists by form.
func DefaultCategories() map[string][]string {
	return map[string][]string{
		string(Credit): append([]string(nil), CreditCategories...),
		string(Debit):  append([]string(nil), DebitCategories...),
		"expense":      append([]string(nil), ExpenseCategories...),
	}
}
