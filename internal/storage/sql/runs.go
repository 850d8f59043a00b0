package sql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

//#######################################################################
// Run operations
//#######################################################################

// CreateRun stores a new run, the whole resource is stored in the entity column as JSON
func (s *SQLStorage) CreateRun(run *api.RunResource) error {
	entityJSON, err := json.Marshal(run)
	if err != nil {
		return serviceerrors.Wrap(err, messages.InternalServerError)
	}
	addEntityStatement, err := createAddEntityStatement(s.sqlConfig.Driver, TABLE_RUNS)
	if err != nil {
		return err
	}
	s.logger.Info("Creating run", constants.LOG_RUN_ID, run.RunID, constants.LOG_STATE, run.State)
	_, err = s.exec(s.ctx, addEntityStatement, run.RunID, run.CreatedAt.UTC(), run.UpdatedAt.UTC(), string(run.State), string(entityJSON))
	if err != nil {
		s.logger.Error("Failed to create run", "error", err, constants.LOG_RUN_ID, run.RunID)
		return serviceerrors.DatabaseFailure("run", run.RunID, err)
	}
	return nil
}

func (s *SQLStorage) GetRun(id string) (*api.RunResource, error) {
	selectQuery, err := createGetEntityStatement(s.sqlConfig.Driver, TABLE_RUNS)
	if err != nil {
		return nil, err
	}

	run, err := scanRun(s.pool.QueryRowContext(s.ctx, selectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, serviceerrors.NotFound("run", id)
		}
		s.logger.Error("Failed to get run", "error", err, constants.LOG_RUN_ID, id)
		return nil, err
	}
	return run, nil
}

func (s *SQLStorage) GetRuns(limit int, offset int, stateFilter string) (*abstractions.QueryResults[api.RunResource], error) {
	// Get total count (with state filter if provided)
	countQuery, countArgs, err := createCountEntitiesStatement(s.sqlConfig.Driver, TABLE_RUNS, stateFilter)
	if err != nil {
		return nil, err
	}

	var totalCount int
	if err = s.pool.QueryRowContext(s.ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		s.logger.Error("Failed to count runs", "error", err)
		return nil, serviceerrors.QueryFailure("runs", err)
	}

	// Build the list query with pagination and state filter
	listQuery, listArgs, err := createListEntitiesStatement(s.sqlConfig.Driver, TABLE_RUNS, limit, offset, stateFilter)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.QueryContext(s.ctx, listQuery, listArgs...)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		return nil, serviceerrors.QueryFailure("runs", err)
	}
	defer rows.Close()

	items := []api.RunResource{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			s.logger.Error("Failed to scan run row", "error", err)
			return nil, err
		}
		items = append(items, *run)
	}
	if err = rows.Err(); err != nil {
		s.logger.Error("Error iterating run rows", "error", err)
		return nil, serviceerrors.QueryFailure("runs", err)
	}

	return &abstractions.QueryResults[api.RunResource]{
		Items:       items,
		TotalStored: totalCount,
	}, nil
}

// UpdateRun replaces the stored run. The state in the database is read in the same
// transaction so that concurrent writers cannot move a run backwards or change
// a run that is already terminal.
func (s *SQLStorage) UpdateRun(run *api.RunResource) error {
	return s.withTransaction("update run", run.RunID, func(txn *sql.Tx) error {
		stateQuery, err := createGetStateForUpdateStatement(s.sqlConfig.Driver, TABLE_RUNS)
		if err != nil {
			return err
		}
		var stored string
		if err := txn.QueryRowContext(s.ctx, stateQuery, run.RunID).Scan(&stored); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return serviceerrors.NotFound("run", run.RunID).WithRollback()
			}
			return serviceerrors.DatabaseFailure("run", run.RunID, err).WithRollback()
		}

		current := api.RunState(stored)
		if current.IsTerminal() {
			return serviceerrors.NewServiceError(messages.RunFinalized, "RunId", run.RunID).WithRollback()
		}
		if current != run.State && !current.CanTransitionTo(run.State) {
			return serviceerrors.NewServiceError(messages.IllegalStateTransition, "RunId", run.RunID, "From", current, "To", run.State).WithRollback()
		}

		run.UpdatedAt = time.Now().UTC()
		entityJSON, err := json.Marshal(run)
		if err != nil {
			return serviceerrors.Wrap(err, messages.InternalServerError).WithRollback()
		}
		updateQuery, err := createUpdateEntityStatement(s.sqlConfig.Driver, TABLE_RUNS)
		if err != nil {
			return err
		}
		if _, err := txn.ExecContext(s.ctx, updateQuery, string(run.State), string(entityJSON), run.UpdatedAt, run.RunID); err != nil {
			s.logger.Error("Failed to update run", "error", err, constants.LOG_RUN_ID, run.RunID)
			return serviceerrors.DatabaseFailure("run", run.RunID, err).WithRollback()
		}
		s.logger.Info("Updated run", constants.LOG_RUN_ID, run.RunID, "from", current, "to", run.State)
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*api.RunResource, error) {
	var dbID string
	var createdAt, updatedAt time.Time
	var state string
	var entityJSON string

	if err := row.Scan(&dbID, &createdAt, &updatedAt, &state, &entityJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, serviceerrors.DatabaseFailure("run", dbID, err)
	}

	var run api.RunResource
	if err := json.Unmarshal([]byte(entityJSON), &run); err != nil {
		return nil, serviceerrors.Wrap(err, messages.JSONUnmarshalFailed, "Type", "run")
	}
	// the columns are authoritative
	run.RunID = dbID
	run.State = api.RunState(state)
	run.CreatedAt = createdAt
	run.UpdatedAt = updatedAt
	return &run, nil
}
