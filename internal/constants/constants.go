package constants

const (
	// Log keys used by the request logger
	LOG_REQUEST_ID = "request_id"
	LOG_METHOD     = "method"
	LOG_URI        = "uri"
	LOG_USER_AGENT = "user_agent"
	LOG_REMOTE_ADR = "remote_addr"
	LOG_USER       = "remote_user"
	LOG_REFERER    = "referer"

	// Log keys used by the dispatcher and runtimes
	LOG_RUN_ID  = "run_id"
	LOG_STATE   = "state"
	LOG_RUNTIME = "runtime"

	PATH_PARAMETER_RUN_ID = "run_id"

	QUERY_PARAMETER_LIMIT  = "limit"
	QUERY_PARAMETER_OFFSET = "offset"
	QUERY_PARAMETER_STATE  = "state"

	DEFAULT_PAGE_LIMIT = 50
	MAX_PAGE_LIMIT     = 500

	HEADER_TRANSACTION_ID = "X-Global-Transaction-Id"

	EnvVarTerminationFile = "TERMINATION_FILE"
	EnvVarConfigPath      = "CONFIG_PATH"
	EnvVarLogLevel        = "LOG_LEVEL"
)
