package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"sheet_notify/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClientWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return client
}

func TestClientReadSheet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/"), r.URL.Path)
		assert.Contains(t, r.URL.Path, "tasks")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"range":"tasks!A1:M1","majorDimension":"ROWS","values":[["ID","Title"]]}`)
	})

	values, err := client.ReadSheet(context.Background(), "sheet-id", RowsRange("tasks", 1, 1, 13))
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"ID", "Title"}}, values)
}

func TestClientSheetTitles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/sheet-id", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sheets":[{"properties":{"title":"tasks"}},{"properties":{"title":"threads"}}]}`)
	})

	titles, err := client.SheetTitles(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks", "threads"}, titles)
}

func TestClientAddSheet(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-id:batchUpdate", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"spreadsheetId":"sheet-id","replies":[{}]}`)
	})

	require.NoError(t, client.AddSheet(context.Background(), "sheet-id", "threads", 100, 3))

	requests := body["requests"].([]interface{})
	require.Len(t, requests, 1)
	props := requests[0].(map[string]interface{})["addSheet"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, "threads", props["title"])
}

func TestSpreadsheetRetriesTransientReadErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"backend unavailable"}}`)
			return
		}
		fmt.Fprint(w, `{"values":[["Label","ThreadID","CreatedAt"]]}`)
	})

	resilience := config.DefaultResilienceConfig
	resilience.SheetRead.BaseDelay = 0
	resilience.SheetRead.MaxDelay = 0
	ss := NewSpreadsheet(client, "sheet-id", resilience)

	rows, err := ss.ReadRows(context.Background(), "threads", 1, 1, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSpreadsheetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"Unable to parse range"}}`)
	})

	ss := NewSpreadsheet(client, "sheet-id", config.DefaultResilienceConfig)
	_, err := ss.ReadRows(context.Background(), "missing", 1, 1, 3)
	require.Error(t, err)
	assert.False(t, IsRetryableError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(fmt.Errorf("failed to read sheet: %w", &googleapi.Error{Code: 429})))
	assert.True(t, IsRetryableError(&googleapi.Error{Code: 500}))
	assert.False(t, IsRetryableError(&googleapi.Error{Code: 403}))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(errors.New("boom")))
}

func TestSpreadsheetWithoutRetriesCallsOnce(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"code":503,"message":"backend unavailable"}}`)
	})

	ss := NewSpreadsheet(client, "sheet-id", config.NoRetryResilienceConfig)
	_, err := ss.SheetTitles(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryableError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestThreadDirectoryBindAppendsRawValues(t *testing.T) {
	var query map[string]string
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/sheet-id":
			fmt.Fprint(w, `{"sheets":[{"properties":{"title":"threads"}}]}`)
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "A1:C1"):
			fmt.Fprint(w, `{"values":[["Label","ThreadID","CreatedAt"]]}`)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			query = map[string]string{
				"valueInputOption": r.URL.Query().Get("valueInputOption"),
				"insertDataOption": r.URL.Query().Get("insertDataOption"),
			}
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			fmt.Fprint(w, `{"spreadsheetId":"sheet-id"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	dir := NewThreadDirectory(NewSpreadsheet(client, "sheet-id", config.NoRetryResilienceConfig), "threads")
	rebound, err := dir.Bind(context.Background(), "007", 15)
	require.NoError(t, err)
	assert.False(t, rebound)

	assert.Equal(t, "RAW", query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", query["insertDataOption"])
	require.Len(t, body.Values, 1)
	assert.Equal(t, "007", body.Values[0][0])
	assert.Equal(t, "15", body.Values[0][1])
}
