package posthog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCohort_SendsHeadersAndBody(t *testing.T) {
	var (
		gotPath    string
		gotMethod  string
		gotHeaders http.Header
		gotBody    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer phx_test")
	headers.Set("Content-Type", "application/json")

	c := NewClient(srv.URL+"/", headers)
	resp, err := c.CreateCohort(context.Background(), NewPropertyCohort("Users with plan = pro", "plan", "pro"))
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, `{"id":42}`, resp.Body)
	assert.Equal(t, "/api/cohort", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer phx_test", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	want := map[string]any{
		"id": "new",
		"groups": []any{map[string]any{
			"properties": []any{map[string]any{
				"key":      "plan",
				"value":    []any{"pro"},
				"operator": "exact",
				"type":     "person",
			}},
		}},
		"is_static": false,
		"name":      "Users with plan = pro",
	}
	assert.Equal(t, want, gotBody)
}

func TestCreateCohort_ReturnsNonOKStatusWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).CreateCohort(context.Background(), NewPropertyCohort("n", "p", "v"))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.True(t, resp.ServerError())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCreateCohort_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).CreateCohort(context.Background(), NewPropertyCohort("n", "p", "v"))
	require.Error(t, err)
}

func TestResponseClassification(t *testing.T) {
	cases := []struct {
		status      int
		ok, server5 bool
	}{
		{200, true, false},
		{201, true, false},
		{299, true, false},
		{302, false, false},
		{400, false, false},
		{404, false, false},
		{500, false, true},
		{503, false, true},
		{599, false, true},
	}
	for _, tc := range cases {
		r := &Response{StatusCode: tc.status}
		assert.Equal(t, tc.ok, r.OK(), "status %d", tc.status)
		assert.Equal(t, tc.server5, r.ServerError(), "status %d", tc.status)
	}
}
