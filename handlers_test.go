package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/paperless-link/dbview/dbview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, s *Service, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	newRouter(s).ServeHTTP(rec, req)
	return rec
}

func TestCustomColumnHandlers(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("FROM custom_columns")).
			WithArgs("tasks").
			WillReturnRows(sqlmock.NewRows(customColumnRowFields).
				AddRow(int64(1), "tasks", "owner", "Owner", "text", "[]", int64(150), int64(1), "alice", nil, nil))

		rec := serve(t, s, http.MethodGet, "/api/custom-columns/tasks", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CustomColumnListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "owner", resp.Results[0].ColID)
	})

	t.Run("list failure", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("FROM custom_columns")).WillReturnError(errors.New("connection reset"))

		rec := serve(t, s, http.MethodGet, "/api/custom-columns/tasks", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("create uses the request user", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("AND col_id = ?")).
			WillReturnRows(sqlmock.NewRows(customColumnRowFields))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(col_order)")).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO custom_columns")).
			WithArgs("tasks", "owner", "Owner", "text", "[]", 150, 1, "dana").
			WillReturnResult(sqlmock.NewResult(9, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT created, modified")).
			WillReturnRows(sqlmock.NewRows([]string{"created", "modified"}))

		rec := serve(t, s, http.MethodPost, "/api/custom-columns/tasks",
			`{"col_id":"owner","col_label":"Owner","col_type":"text"}`,
			map[string]string{"X-Username": "dana"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var col CustomColumn
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &col))
		require.NotNil(t, col.ID)
		assert.Equal(t, 9, *col.ID)
		require.NotNil(t, col.CreatedBy)
		assert.Equal(t, "dana", *col.CreatedBy)
	})

	t.Run("create conflict", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("AND col_id = ?")).
			WillReturnRows(sqlmock.NewRows(customColumnRowFields).
				AddRow(int64(1), "tasks", "owner", "Owner", "text", "[]", int64(150), int64(1), "alice", nil, nil))

		rec := serve(t, s, http.MethodPost, "/api/custom-columns/tasks",
			`{"col_id":"owner","col_label":"Owner","col_type":"text"}`, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("create invalid", func(t *testing.T) {
		s, _ := newMockService(t, "sqlite")

		rec := serve(t, s, http.MethodPost, "/api/custom-columns/tasks", `{"col_label":"Owner","col_type":"blob"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = serve(t, s, http.MethodPost, "/api/custom-columns/tasks", `{"col_label":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Bad Request", resp.Error)
	})

	t.Run("delete", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectExec(regexp.QuoteMeta("UPDATE custom_columns SET deleted_at")).
			WithArgs("tasks", "owner").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE custom_columns SET deleted_at")).
			WithArgs("tasks", "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rec := serve(t, s, http.MethodDelete, "/api/custom-columns/tasks/owner", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = serve(t, s, http.MethodDelete, "/api/custom-columns/tasks/ghost", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestViewConfigHandlers(t *testing.T) {
	t.Run("get returns the stored document", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("SELECT config FROM view_configs")).
			WithArgs("tasks").
			WillReturnRows(sqlmock.NewRows([]string{"config"}).AddRow(`{"view":"gallery","pageSize":25}`))

		rec := serve(t, s, http.MethodGet, "/api/view-configs/tasks", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"view":"gallery","pageSize":25}`, rec.Body.String())
	})

	t.Run("get missing", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("SELECT config FROM view_configs")).
			WillReturnRows(sqlmock.NewRows([]string{"config"}))

		rec := serve(t, s, http.MethodGet, "/api/view-configs/tasks", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("put", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO view_configs")).
			WithArgs("tasks", `{"view":"board"}`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := serve(t, s, http.MethodPut, "/api/view-configs/tasks", `{"view":"board"}`, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = serve(t, s, http.MethodPut, "/api/view-configs/tasks", `not json`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM view_configs")).
			WithArgs("tasks").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := serve(t, s, http.MethodDelete, "/api/view-configs/tasks", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

const statusRows = `[
	{"id":"r1","title":"Write docs","status":"todo"},
	{"id":"r2","title":"Ship release","status":"todo"},
	{"id":"r3","title":"Fix login","status":"done"},
	{"id":"r4","title":"Plan sprint"}
]`

const statusColumn = `{"id":"status","label":"Status","type":"select","options":[
	{"value":"todo","label":"To do"},
	{"value":"done","label":"Done"}
]}`

func TestColumnValuesHandler(t *testing.T) {
	t.Run("counts with the sent column", func(t *testing.T) {
		s, _ := newMockService(t, "sqlite")

		rec := serve(t, s, http.MethodPost, "/api/column-values/tasks/status",
			`{"rows":`+statusRows+`,"column":`+statusColumn+`}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ColumnValuesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tasks", resp.StateKey)
		assert.Equal(t, "status", resp.ColumnID)
		assert.Equal(t, 4, resp.TotalRows)
		require.Len(t, resp.Values, 2)
		assert.Equal(t, "To do", resp.Values[0].Label)
		assert.Equal(t, 2, resp.Values[0].Count)
		assert.Equal(t, "Done", resp.Values[1].Label)
		assert.Equal(t, 1, resp.Values[1].Count)
	})

	t.Run("query parameters override the body", func(t *testing.T) {
		s, _ := newMockService(t, "sqlite")

		rec := serve(t, s, http.MethodPost, "/api/column-values/tasks/status?sort_by=label&ignore_case=true&q=DONE",
			`{"rows":`+statusRows+`,"column":`+statusColumn+`,"sort_by":"count"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ColumnValuesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Values, 1)
		assert.Equal(t, "done", resp.Values[0].Value)
	})

	t.Run("filter rules narrow the rows", func(t *testing.T) {
		s, _ := newMockService(t, "sqlite")

		rec := serve(t, s, http.MethodPost, "/api/column-values/tasks/status",
			`{"rows":`+statusRows+`,"column":`+statusColumn+`,"filter_rules":[{"id":"f1","field":"status","operator":"is_not","value":"todo"}]}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ColumnValuesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.TotalRows)
		require.Len(t, resp.Values, 1)
		assert.Equal(t, "Done", resp.Values[0].Label)
	})

	t.Run("falls back to the registry", func(t *testing.T) {
		s, mock := newMockService(t, "sqlite")
		mock.ExpectQuery(regexp.QuoteMeta("AND col_id = ?")).
			WithArgs("tasks", "tags").
			WillReturnRows(sqlmock.NewRows(customColumnRowFields).
				AddRow(int64(1), "tasks", "tags", "Tags", "multi_select", `[{"value":"ui","label":"UI"}]`,
					int64(150), int64(1), "alice", nil, nil))

		rec := serve(t, s, http.MethodPost, "/api/column-values/tasks/tags",
			`{"rows":[{"id":"r1","tags":"ui, api"},{"id":"r2","tags":["ui"]}]}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ColumnValuesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Values, 2)
		assert.Equal(t, dbview.ValueCount{ID: resp.Values[0].ID, Value: "ui", Label: "UI", Count: 2}, resp.Values[0])
		assert.Equal(t, dbview.ValueCount{ID: resp.Values[1].ID, Value: "api", Label: "api", Count: 1}, resp.Values[1])
	})

	t.Run("bad body", func(t *testing.T) {
		s, _ := newMockService(t, "sqlite")
		rec := serve(t, s, http.MethodPost, "/api/column-values/tasks/status", `[`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	s, _ := newMockService(t, "sqlite")
	rec := serve(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestNewHandlerCORS(t *testing.T) {
	s, _ := newMockService(t, "sqlite")

	req := httptest.NewRequest(http.MethodOptions, "/api/view-configs/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	newHandler(s, s.logger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
