package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/report"
	"kakeibo/internal/storage"
)

var errBadParam = fmt.Errorf("%w: invalid parameter", core.ErrValidation)

// intParam returns the integer value of key, or def when it is absent.
func intParam(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w %s=%q", errBadParam, key, v)
	}
	return n, nil
}

// yearMonth reads year and month, defaulting to the current month. Unlike a
// form default, an unparsable or out of range value is an error.
func yearMonth(q url.Values, now time.Time) (int, int, error) {
	year, err := intParam(q, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	month, err := intParam(q, "month", int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	if err := core.ValidatePeriod(year, month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

// periodParams reads period, year and month.
func periodParams(q url.Values, now time.Time) (report.Period, int, int, error) {
	p, err := report.ParsePeriod(q.Get("period"))
	if err != nil {
		return "", 0, 0, err
	}
	year, month, err := yearMonth(q, now)
	if err != nil {
		return "", 0, 0, err
	}
	return p, year, month, nil
}

// kindParam parses the optional kind query parameter.
func kindParam(q url.Values) (core.Kind, error) {
	v := q.Get("kind")
	if v == "" {
		return "", nil
	}
	return core.ParseKind(v)
}

// pathID parses the {id} path segment. Anything that is not a UUID cannot
// name a record, so it is reported as not found.
func pathID(r *http.Request) (uuid.UUID, error) {
	v := r.PathValue("id")
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("id %q: %w", v, storage.ErrNotFound)
	}
	return id, nil
}
