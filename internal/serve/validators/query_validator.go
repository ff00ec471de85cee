package validators

import (
	"net/http"
	"strconv"
	"time"
)

// QueryValidator parses pagination and date-range query parameters.
type QueryValidator struct {
	*Validator
	DefaultPageLimit int
	MaxPageLimit     int
}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{
		Validator:        NewValidator(),
		DefaultPageLimit: 20,
		MaxPageLimit:     200,
	}
}

type QueryParams struct {
	Page      int
	PageLimit int
	From      time.Time
	To        time.Time
}

// ParseParametersFromRequest parses query parameters from the request and
// returns a QueryParams struct.
func (qv *QueryValidator) ParseParametersFromRequest(r *http.Request) *QueryParams {
	page := qv.validateAndGetIntParams(r, "page", 1)
	pageLimit := qv.validateAndGetIntParams(r, "page_limit", qv.DefaultPageLimit)

	qv.Check(page >= 1, "page", "parameter must be greater than 0")
	qv.Check(pageLimit >= 1, "page_limit", "parameter must be greater than 0")
	if qv.MaxPageLimit > 0 && pageLimit > qv.MaxPageLimit {
		pageLimit = qv.MaxPageLimit
	}

	query := r.URL.Query()
	from := qv.validateAndGetTimeParams(query.Get("from"), "from")
	to := qv.validateAndGetTimeParams(query.Get("to"), "to")
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		qv.AddError("to", "'to' cannot precede 'from'")
	}

	if qv.HasErrors() {
		return &QueryParams{}
	}

	return &QueryParams{
		Page:      page,
		PageLimit: pageLimit,
		From:      from,
		To:        to,
	}
}

func (qv *QueryValidator) validateAndGetIntParams(r *http.Request, param string, defaultValue int) int {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		qv.CheckError(err, param, "parameter must be an integer")
		return defaultValue
	}

	return intValue
}

func (qv *QueryValidator) validateAndGetTimeParams(value, param string) time.Time {
	if value == "" {
		return time.Time{}
	}

	dateParam, err := time.Parse(time.DateOnly, value)
	if err != nil {
		qv.Check(false, param, "invalid date format. valid format is 'YYYY-MM-DD'")
		return time.Time{}
	}

	return dateParam
}
