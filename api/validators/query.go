package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

type pageQuery struct {
	Limit  *int   `form:"limit" validate:"omitempty,min=1,max=500"`
	Cursor string `form:"cursor" validate:"omitempty,max=512"`
}

func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParsePage reads the optional limit and cursor parameters. Absent parameters yield the
// zero Params, which requests the full listing.
func ParsePage(r *http.Request) (pagination.Params, error) {
	q := pageQuery{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
	if strings.TrimSpace(r.URL.Query().Get("limit")) != "" {
		limit, err := ParseQueryInt(r, "limit", 0)
		if err != nil {
			return pagination.Params{}, err
		}
		q.Limit = &limit
	}
	if err := Struct(&q); err != nil {
		return pagination.Params{}, err
	}
	params := pagination.Params{Cursor: q.Cursor}
	if q.Limit != nil {
		params.Limit = *q.Limit
	}
	return params, nil
}
