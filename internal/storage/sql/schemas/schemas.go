package schemas

// Runs are stored as a JSON entity, the state column duplicates the entity's
// state so that it can be filtered on and checked inside a transaction.

const SQLITE_SCHEMA = `
CREATE TABLE IF NOT EXISTS runs (
    id VARCHAR(36) PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    state VARCHAR(16) NOT NULL DEFAULT 'CREATED',
    entity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state
ON runs (state);

CREATE INDEX IF NOT EXISTS idx_runs_created_at
ON runs (created_at);
`

const POSTGRES_SCHEMA = `
CREATE TABLE IF NOT EXISTS runs (
    id VARCHAR(36) PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    state VARCHAR(16) NOT NULL DEFAULT 'CREATED',
    entity JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state
ON runs (state);

CREATE INDEX IF NOT EXISTS idx_runs_created_at
ON runs (created_at);
`
