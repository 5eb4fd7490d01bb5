package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteActivity(t *testing.T) {
	var got CompleteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/activities/complete", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "svc", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"rewards":{"diamonds":5,"experience":20},"user":{"diamonds":105,"experience":420}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithAPIKey("svc"))
	spent := 42
	resp, err := c.CompleteActivity(context.Background(), Credentials{BearerToken: "tok", Cookie: "session=abc"}, CompleteRequest{Slug: "py-lists", Score: 100, TimeSpent: &spent})
	require.NoError(t, err)

	assert.Equal(t, CompleteRequest{Slug: "py-lists", Score: 100, TimeSpent: &spent}, got)
	assert.Equal(t, Rewards{Diamonds: 5, Experience: 20}, resp.Rewards)
	assert.False(t, resp.AlreadyCompleted)
	require.NotNil(t, resp.User)
	assert.Equal(t, 105, resp.User.Diamonds)
}

func TestCompleteActivityErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, 500, apiErr.StatusCode)
				assert.Equal(t, "HTTP 500: boom", apiErr.Error())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("boom"))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).CompleteActivity(context.Background(), Credentials{}, CompleteRequest{Slug: "x"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCompleteActivityTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond)).CompleteActivity(context.Background(), Credentials{}, CompleteRequest{Slug: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestCompleteActivityMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CompleteActivity(context.Background(), Credentials{}, CompleteRequest{Slug: "x"})
	assert.ErrorContains(t, err, "failed to unmarshal response")
}
