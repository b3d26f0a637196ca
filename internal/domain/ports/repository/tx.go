package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Use-case interfaces stay clean (no storage types leaking out); repository
// methods that accept a `Tx` detect the handle implementation-side and run
// SELECT ... FOR UPDATE / tx-bound Exec as needed. Repositories MUST
// gracefully accept a nil handle (non-transactional path).
//
// Every webhook transition in this service is one WithTx unit: read current
// entity state, decide, write. That is what makes duplicate deliveries
// no-ops instead of double credits.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
