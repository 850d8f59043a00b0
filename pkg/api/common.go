package api

// ------------------------------------------------------------------------------------------------
// General naming conventions:
// ------------------------------------------------------------------------------------------------
// - ...Request - represents an object specified by the user when submitting a resource.
// - ...Resource - represents an object stored in the database. This is the REST resource.
// - ...ResourceList - represents a list of REST resources
// - ...Response - represents a response that is not a stored resource
// ------------------------------------------------------------------------------------------------

type HRef struct {
	Href string `json:"href"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Msg        string `json:"msg"`
}

func (e *ErrorResponse) Error() string {
	return e.Msg
}

// Page represents generic pagination schema
type Page struct {
	First      *HRef `json:"first"`
	Next       *HRef `json:"next,omitempty"`
	Limit      int   `json:"limit"`
	TotalCount int   `json:"total_count"`
}

// EnvVar captures environment variables for the engine driver pod.
type EnvVar struct {
	Name  string `mapstructure:"name" yaml:"name" json:"name"`
	Value string `mapstructure:"value" yaml:"value" json:"value"`
}
