// Package authority is the explicit authorization object threaded through
// every privileged ledger call. It replaces an implicit owner singleton with a
// role table so governance can change without touching ledger logic.
package authority

import (
	"sync"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

type Role string

const (
	// RoleAdmin registers subjects, binds programs and verifiers, and runs
	// emergency withdrawals.
	RoleAdmin Role = "admin"
	// RoleEngine is the policy engine's authority to release payouts from the vault.
	RoleEngine Role = "engine"
)

// Principal is the caller of a privileged operation.
type Principal struct {
	Account domain.AccountID
}

// As builds a principal for account.
func As(account domain.AccountID) Principal {
	return Principal{Account: account}
}

// Table maps roles to the accounts holding them.
type Table struct {
	mu     sync.RWMutex
	grants map[Role]map[domain.AccountID]struct{}
}

func NewTable() *Table {
	return &Table{grants: make(map[Role]map[domain.AccountID]struct{})}
}

// Grant adds account to role.
func (t *Table) Grant(role Role, account domain.AccountID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.grants[role] == nil {
		t.grants[role] = make(map[domain.AccountID]struct{})
	}
	t.grants[role][account] = struct{}{}
}

// Revoke removes account from role.
func (t *Table) Revoke(role Role, account domain.AccountID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants[role], account)
}

// Assign makes account the sole holder of role and returns the previous holders.
func (t *Table) Assign(role Role, account domain.AccountID) []domain.AccountID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var previous []domain.AccountID
	for acct := range t.grants[role] {
		previous = append(previous, acct)
	}
	t.grants[role] = map[domain.AccountID]struct{}{account: {}}
	return previous
}

// Restore replaces the holders of role, used to undo Assign.
func (t *Table) Restore(role Role, holders []domain.AccountID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[domain.AccountID]struct{}, len(holders))
	for _, acct := range holders {
		set[acct] = struct{}{}
	}
	t.grants[role] = set
}

// Has reports whether account holds role.
func (t *Table) Has(account domain.AccountID, role Role) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.grants[role][account]
	return ok
}

// Require fails with CodeUnauthorized for an anonymous principal and
// CodeForbidden when the principal lacks role.
func (t *Table) Require(p Principal, role Role) error {
	if p.Account.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	if !t.Has(p.Account, role) {
		return dErrors.Newf(dErrors.CodeForbidden, "caller lacks %s role", role)
	}
	return nil
}
