package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/chronos/internal/core/query"
)

// decodeJSON は未知のフィールドと後続データを拒否する厳格な JSON デコードを行います。
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body must not exceed %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is required", errBadRequest)
		default:
			return fmt.Errorf("%w: malformed request body: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// pathID はパスパラメータ id を正の整数として読み取ります。
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: id must be a positive integer", errBadRequest)
	}
	return id, nil
}

// listParams は一覧取得のクエリ文字列をページ指定、フィルタ候補、フィールド指定に分解します。
type listParams struct {
	page   query.Page
	raw    map[string]string
	fields []string
}

func parseListParams(r *http.Request) (listParams, error) {
	values := r.URL.Query()

	page := query.Page{}
	if raw := values.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return listParams{}, fmt.Errorf("%w: skip must be an integer greater than or equal to 0", errBadRequest)
		}
		page.Skip = skip
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return listParams{}, fmt.Errorf("%w: limit must be an integer greater than or equal to 1", errBadRequest)
		}
		page.Limit = limit
	}

	raw := make(map[string]string, len(values))
	for key, vals := range values {
		if key == "fields" || len(vals) == 0 {
			continue
		}
		raw[key] = vals[0]
	}

	return listParams{
		page:   page,
		raw:    raw,
		fields: query.ParseFields(strings.Join(values["fields"], ",")),
	}, nil
}

// requestedFields は fields クエリから射影を構築します。
func requestedFields(r *http.Request, allowed []string) query.Projection {
	return query.BuildProjection(query.ParseFields(strings.Join(r.URL.Query()["fields"], ",")), allowed)
}
