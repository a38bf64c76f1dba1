package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cursorResponse(w http.ResponseWriter, ids []string, hasMore bool) {
	data := make([]map[string]any, len(ids))
	for i, id := range ids {
		data[i] = map[string]any{"id": id}
	}
	json.NewEncoder(w).Encode(map[string]any{"data": data, "has_more": hasMore})
}

func TestFetchAllCursor_FollowsStartingAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("starting_after") {
		case "":
			cursorResponse(w, []string{"in_1", "in_2"}, true)
		case "in_2":
			cursorResponse(w, []string{"in_3"}, false)
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("starting_after"))
		}
	}))
	defer srv.Close()

	c := testClient(t, Options{PageSize: 2})
	records, report, err := c.FetchAllCursor(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.Fetched)
}

func TestFetchAllCursor_KeepsFilterParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1748736000", r.URL.Query().Get("created[gte]"))
		cursorResponse(w, []string{"in_1"}, false)
	}))
	defer srv.Close()

	c := testClient(t, Options{})
	params := map[string][]string{"created[gte]": {"1748736000"}}
	_, _, err := c.FetchAllCursor(context.Background(), srv.URL, params)
	require.NoError(t, err)
}

func TestFetchAllCursor_StopsOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursorResponse(w, nil, true)
	}))
	defer srv.Close()

	c := testClient(t, Options{})
	records, report, err := c.FetchAllCursor(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, report.Pages)
}

func TestFetchAllCursor_FirstPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, Options{})
	_, _, err := c.FetchAllCursor(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchExhausted)
}

func TestFetchAllCursor_MidFetchFailureTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("starting_after") == "" {
			cursorResponse(w, []string{"in_1"}, true)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, Options{})
	records, report, err := c.FetchAllCursor(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.True(t, report.Truncated)
}
