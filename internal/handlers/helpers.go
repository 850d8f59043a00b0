package handlers

import (
	"net/url"
	"strconv"

	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

func CreatePage(total int, offset int, limit int, ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper) (*api.Page, error) {
	// Calculate pagination info

	hasNext := offset+limit < total
	var nextHref *api.HRef
	if hasNext {
		href, err := url.Parse(r.URI())
		if err != nil {
			ctx.Logger.Error("Failed to parse request URI", "uri", r.URI(), "error", err)
			return nil, serviceerrors.Wrap(err, messages.InternalServerError)
		}
		q := href.Query()
		if !q.Has(constants.QUERY_PARAMETER_OFFSET) {
			q.Add(constants.QUERY_PARAMETER_OFFSET, strconv.Itoa(offset+limit))
		} else {
			q.Set(constants.QUERY_PARAMETER_OFFSET, strconv.Itoa(offset+limit))
		}
		href.RawQuery = q.Encode()
		nextHref = &api.HRef{Href: href.String()}
	}

	return &api.Page{
		First:      &api.HRef{Href: r.URI()},
		Next:       nextHref,
		Limit:      limit,
		TotalCount: total,
	}, nil
}

// queryInt returns the first value of the query parameter name as a non-negative
// integer, or fallback when it is absent.
func queryInt(r http_wrappers.RequestWrapper, name string, fallback int) (int, error) {
	values := r.Query(name)
	if len(values) == 0 || values[0] == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(values[0])
	if err != nil || value < 0 {
		return 0, serviceerrors.NewServiceError(messages.QueryParameterInvalid, "ParameterName", name, "Type", "non-negative integer", "Value", values[0])
	}
	return value, nil
}

func queryString(r http_wrappers.RequestWrapper, name string) string {
	values := r.Query(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
