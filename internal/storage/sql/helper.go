package sql

import (
	"fmt"
	"strings"

	"github.com/wes-dispatch/wes-dispatch/internal/storage/sql/schemas"
)

func getUnsupportedDriverError(driver string) error {
	return fmt.Errorf("unsupported driver: %s", driver)
}

func schemasForDriver(driver string) (string, error) {
	switch driver {
	case SQLITE_DRIVER:
		return schemas.SQLITE_SCHEMA, nil
	case POSTGRES_DRIVER:
		return schemas.POSTGRES_SCHEMA, nil
	default:
		return "", getUnsupportedDriverError(driver)
	}
}

// quoteIdentifier properly quotes an identifier for the given driver
func quoteIdentifier(_ /*driver*/ string, identifier string) string {
	// Escape double quotes by doubling them
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

// placeholders returns n driver-specific bind parameters starting at position start
func placeholders(driver string, start int, n int) []string {
	out := make([]string, n)
	for i := range n {
		if driver == POSTGRES_DRIVER {
			out[i] = fmt.Sprintf("$%d", start+i)
		} else {
			out[i] = "?"
		}
	}
	return out
}

func checkDriver(driver string) error {
	switch driver {
	case POSTGRES_DRIVER, SQLITE_DRIVER:
		return nil
	default:
		return getUnsupportedDriverError(driver)
	}
}

// createAddEntityStatement returns a driver-specific INSERT statement
// with properly quoted table name and appropriate placeholder syntax
func createAddEntityStatement(driver, tableName string) (string, error) {
	if err := checkDriver(driver); err != nil {
		return "", err
	}
	p := placeholders(driver, 1, 5)
	return fmt.Sprintf(`INSERT INTO %s (id, created_at, updated_at, state, entity) VALUES (%s);`,
		quoteIdentifier(driver, tableName), strings.Join(p, ", ")), nil
}

// createGetEntityStatement returns a driver-specific SELECT statement
// to retrieve an entity by ID
func createGetEntityStatement(driver, tableName string) (string, error) {
	if err := checkDriver(driver); err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT id, created_at, updated_at, state, entity FROM %s WHERE id = %s;`,
		quoteIdentifier(driver, tableName), placeholders(driver, 1, 1)[0]), nil
}

// createGetStateForUpdateStatement returns a driver-specific SELECT statement
// that reads the current state of an entity inside a transaction, locking the row
// where the driver supports it
func createGetStateForUpdateStatement(driver, tableName string) (string, error) {
	quotedTable := quoteIdentifier(driver, tableName)

	switch driver {
	case POSTGRES_DRIVER:
		return fmt.Sprintf(`SELECT state FROM %s WHERE id = $1 FOR UPDATE;`, quotedTable), nil
	case SQLITE_DRIVER:
		// SQLite locks the database for the write that follows
		return fmt.Sprintf(`SELECT state FROM %s WHERE id = ?;`, quotedTable), nil
	default:
		return "", getUnsupportedDriverError(driver)
	}
}

// createCountEntitiesStatement returns a driver-specific COUNT statement
// to count total entities in the table, optionally filtered by state
func createCountEntitiesStatement(driver, tableName string, stateFilter string) (string, []any, error) {
	if err := checkDriver(driver); err != nil {
		return "", nil, err
	}
	quotedTable := quoteIdentifier(driver, tableName)
	if stateFilter != "" {
		return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE state = %s;`, quotedTable, placeholders(driver, 1, 1)[0]), []any{stateFilter}, nil
	}
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, quotedTable), nil, nil
}

// createListEntitiesStatement returns a driver-specific SELECT statement
// to list entities with pagination (LIMIT and OFFSET), newest first, optionally filtered by state
func createListEntitiesStatement(driver, tableName string, limit, offset int, stateFilter string) (string, []any, error) {
	if err := checkDriver(driver); err != nil {
		return "", nil, err
	}
	quotedTable := quoteIdentifier(driver, tableName)
	if stateFilter != "" {
		p := placeholders(driver, 1, 3)
		return fmt.Sprintf(`SELECT id, created_at, updated_at, state, entity FROM %s WHERE state = %s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s;`,
			quotedTable, p[0], p[1], p[2]), []any{stateFilter, limit, offset}, nil
	}
	p := placeholders(driver, 1, 2)
	return fmt.Sprintf(`SELECT id, created_at, updated_at, state, entity FROM %s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s;`,
		quotedTable, p[0], p[1]), []any{limit, offset}, nil
}

// createUpdateEntityStatement returns a driver-specific UPDATE statement
// that sets the state, entity and updated_at of an entity by ID
func createUpdateEntityStatement(driver, tableName string) (string, error) {
	if err := checkDriver(driver); err != nil {
		return "", err
	}
	p := placeholders(driver, 1, 4)
	return fmt.Sprintf(`UPDATE %s SET state = %s, entity = %s, updated_at = %s WHERE id = %s;`,
		quoteIdentifier(driver, tableName), p[0], p[1], p[2], p[3]), nil
}
