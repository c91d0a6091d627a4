package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "derisk/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a guarded transaction when the
// caller did not set a deadline.
const defaultTxTimeout = 5 * time.Second

// Guard is the transactional boundary of one logical ledger component.
//
// Invariants:
//   - at most one transaction runs inside a Guard at a time, including any
//     collaborator calls made from within it
//   - a call that re-enters the same Guard from inside its own transaction
//     (detected through the context) fails with CodeInvalidState instead of
//     deadlocking
//   - on error every effect registered through OnRollback is undone in reverse
//     order, and a SQL transaction (when configured) is rolled back
//   - a nested transaction that commits hands its undo log to the enclosing
//     one, so a later failure in the outer transaction still reverts it
//   - a guard entered inside an outer transaction stays locked until the
//     outermost transaction finishes; later sibling calls on it join the lock
//
// Guards held together are taken in the order engine, vault, asset. Callers
// that touch the vault and the asset ledger reserve the vault first.
type Guard struct {
	name    string
	sem     chan struct{}
	db      *sql.DB
	lockKey int64
	timeout time.Duration
}

type GuardOption func(*Guard)

// WithDB makes the guard open (or join) a SQL transaction and take a
// transaction-scoped advisory lock so several processes serialize too.
func WithDB(db *sql.DB) GuardOption {
	return func(g *Guard) {
		g.db = db
	}
}

// WithTimeout overrides the default transaction timeout.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGuard builds a guard. name identifies the component in errors and is the
// seed of its advisory lock key.
func NewGuard(name string, opts ...GuardOption) *Guard {
	g := &Guard{
		name:    name,
		sem:     make(chan struct{}, 1),
		lockKey: int64(hashString(name)),
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the component name.
func (g *Guard) Name() string { return g.name }

type guardMarker struct{ g *Guard }

type scopeKey struct{}

type scope struct {
	undo  []func()
	after []func(context.Context)
	depth int
	root  *scope
	// held is only set on the root scope.
	held []*Guard
}

func (s *scope) holding(g *Guard) bool {
	for _, h := range s.root.held {
		if h == g {
			return true
		}
	}
	return false
}

// release frees every guard lock the transaction tree took. Only called on
// the root scope.
func (s *scope) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		<-s.held[i].sem
	}
	s.held = nil
}

func (s *scope) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
	s.after = nil
}

// OnRollback registers fn to run if the enclosing transaction fails. Outside a
// transaction the call is a no-op because the effect is already final.
func OnRollback(ctx context.Context, fn func()) {
	if sc, ok := ctx.Value(scopeKey{}).(*scope); ok {
		sc.undo = append(sc.undo, fn)
	}
}

// AfterCommit registers fn to run once the outermost enclosing transaction
// has committed. fn receives the caller's context, which no longer carries
// the finished transaction. Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if sc, ok := ctx.Value(scopeKey{}).(*scope); ok {
		sc.after = append(sc.after, fn)
		return
	}
	fn(ctx)
}

// InTx reports whether ctx is inside any guarded transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(scopeKey{}).(*scope)
	return ok
}

// Holds reports whether ctx is inside a transaction of g.
func (g *Guard) Holds(ctx context.Context) bool {
	return ctx.Value(guardMarker{g}) != nil
}

// RunInTx executes fn as one indivisible unit relative to every other
// transaction on g.
func (g *Guard) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if g.Holds(ctx) {
		return dErrors.Newf(dErrors.CodeInvalidState, "reentrant call into %s rejected", g.name)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parent, _ := ctx.Value(scopeKey{}).(*scope)
	sc := &scope{}
	if parent != nil {
		sc.depth = parent.depth + 1
		sc.root = parent.root
		if !sc.holding(g) {
			if err := g.acquire(ctx); err != nil {
				return err
			}
			sc.root.held = append(sc.root.held, g)
		}
	} else {
		if err := g.acquire(ctx); err != nil {
			return err
		}
		sc.root = sc
		sc.held = []*Guard{g}
		defer sc.release()
	}
	txCtx := context.WithValue(ctx, guardMarker{g}, struct{}{})
	txCtx = context.WithValue(txCtx, scopeKey{}, sc)

	sqlTx, savepoint, err := g.beginSQL(txCtx, sc.depth)
	if err != nil {
		return err
	}
	if sqlTx != nil {
		txCtx = WithTx(txCtx, sqlTx)
	}

	defer func() {
		if r := recover(); r != nil {
			sc.rollback()
			g.abortSQL(txCtx, sqlTx, savepoint)
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		sc.rollback()
		g.abortSQL(txCtx, sqlTx, savepoint)
		return err
	}

	if err := g.commitSQL(txCtx, sqlTx, savepoint); err != nil {
		sc.rollback()
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction commit failed")
	}
	if parent != nil {
		parent.undo = append(parent.undo, sc.undo...)
		parent.after = append(parent.after, sc.after...)
		return nil
	}
	sc.release()
	for _, fn := range sc.after {
		fn(ctx)
	}
	return nil
}

// Reserve takes g's lock for the rest of the enclosing transaction without
// entering g, so a caller can fix the lock order before touching other
// guards. A later RunInTx on g inside the same transaction joins the lock.
// Outside a transaction Reserve does nothing.
func (g *Guard) Reserve(ctx context.Context) error {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok || sc.holding(g) {
		return nil
	}
	if err := g.acquire(ctx); err != nil {
		return err
	}
	sc.root.held = append(sc.root.held, g)
	if sqlTx, ok := From(ctx); ok && g.db != nil {
		return g.advisoryLock(ctx, sqlTx)
	}
	return nil
}

func (g *Guard) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: "+g.name+" busy")
	}
}

// beginSQL opens a SQL transaction, or a savepoint inside the caller's one.
// The returned savepoint is empty for an outermost transaction.
func (g *Guard) beginSQL(ctx context.Context, depth int) (*sql.Tx, string, error) {
	if g.db == nil {
		return nil, "", nil
	}
	if existing, ok := From(ctx); ok {
		savepoint := fmt.Sprintf("sp_%d_%d", depth, uint32(g.lockKey))
		if _, err := existing.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to open savepoint")
		}
		if err := g.advisoryLock(ctx, existing); err != nil {
			_, _ = existing.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
			return nil, "", err
		}
		return existing, savepoint, nil
	}
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	if err := g.advisoryLock(ctx, sqlTx); err != nil {
		_ = sqlTx.Rollback()
		return nil, "", err
	}
	return sqlTx, "", nil
}

func (g *Guard) advisoryLock(ctx context.Context, sqlTx *sql.Tx) error {
	if _, err := sqlTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", g.lockKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire ledger lock")
	}
	return nil
}

func (g *Guard) abortSQL(ctx context.Context, sqlTx *sql.Tx, savepoint string) {
	if sqlTx == nil {
		return
	}
	if savepoint != "" {
		_, _ = sqlTx.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+savepoint)
		return
	}
	_ = sqlTx.Rollback()
}

func (g *Guard) commitSQL(ctx context.Context, sqlTx *sql.Tx, savepoint string) error {
	if sqlTx == nil {
		return nil
	}
	if savepoint != "" {
		_, err := sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
		return err
	}
	return sqlTx.Commit()
}

// hashString uses FNV-1a for a stable lock key per component name.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
