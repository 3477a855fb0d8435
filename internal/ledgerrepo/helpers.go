package ledgerrepo

import (
	"fmt"

	"github.com/titandynamix/payments/internal/domain"
)

// AccountCreatedResponse renders the response text cached under the
// idempotency key and replayed on key reuse.
func AccountCreatedResponse(a domain.Account) string {
	return fmt.Sprintf("Account created with ID: %d", a.ID)
}
