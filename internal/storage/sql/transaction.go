package sql

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
)

type TransactionFunction func(*sql.Tx) error

// withTransaction runs fn in a transaction. The transaction is committed unless fn
// returns an error that is not a service error or a service error flagged for rollback.
func (s *SQLStorage) withTransaction(name string, resourceID string, fn TransactionFunction) error {
	txn, err := s.pool.BeginTx(s.ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "name", name, "resource_id", resourceID, "error", err.Error())
		return serviceerrors.DatabaseFailure(fmt.Sprintf("begin transaction %s", name), resourceID, err)
	}
	fnErr := fn(txn)
	commit := true
	if fnErr != nil {
		var se abstractions.ServiceError
		if !errors.As(fnErr, &se) || se.ShouldRollback() {
			commit = false
		}
	}
	if !commit {
		if txnErr := txn.Rollback(); txnErr != nil {
			s.logger.Error("Failed to rollback transaction", "name", name, "resource_id", resourceID, "error", txnErr.Error())
			return serviceerrors.DatabaseFailure(fmt.Sprintf("rollback transaction %s", name), resourceID, txnErr)
		}
		return fnErr
	}
	if txnErr := txn.Commit(); txnErr != nil {
		s.logger.Error("Failed to commit transaction", "name", name, "resource_id", resourceID, "error", txnErr.Error())
		return serviceerrors.DatabaseFailure(fmt.Sprintf("commit transaction %s", name), resourceID, txnErr)
	}
	return fnErr
}
