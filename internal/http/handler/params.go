package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

var errBadParam = errors.New("bad parameter")

func pathID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", errBadParam, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: body: %v", errBadParam, err)
	}
	return nil
}

// query reads optional typed values from a URL query. The first parse
// failure is kept in err.
type query struct {
	values url.Values
	err    error
}

func newQuery(r *http.Request) *query { return &query{values: r.URL.Query()} }

func (q *query) get(key string) string { return strings.TrimSpace(q.values.Get(key)) }

func (q *query) getInt(key string) int {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.err = fmt.Errorf("%w: %s=%q", errBadParam, key, raw)
	}
	return v
}

func (q *query) optInt(key string) *int {
	if q.get(key) == "" {
		return nil
	}
	v := q.getInt(key)
	return &v
}

func (q *query) optFloat(key string) *float64 {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.err = fmt.Errorf("%w: %s=%q", errBadParam, key, raw)
		return nil
	}
	return &v
}

func (q *query) optBool(key string) *bool {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = fmt.Errorf("%w: %s=%q", errBadParam, key, raw)
		return nil
	}
	return &v
}
