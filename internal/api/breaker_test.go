package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterServerFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, time.Second, WithCircuitBreaker(2, time.Minute))
	ctx := context.Background()

	for range 2 {
		_, err := c.MyOrders(ctx)
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
	}

	_, err := c.MyOrders(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Authentification requise"}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, time.Second, WithCircuitBreaker(2, time.Minute))

	for range 5 {
		_, err := c.Me(context.Background())
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, time.Second, WithCircuitBreaker(1, 50*time.Millisecond))
	ctx := context.Background()

	_, err := c.ListSchools(ctx, "", "")
	require.Error(t, err)
	_, err = c.ListSchools(ctx, "", "")
	require.ErrorIs(t, err, ErrUnavailable)

	healthy.Store(true)
	assert.Eventually(t, func() bool {
		_, err := c.ListSchools(ctx, "", "")
		return err == nil
	}, time.Second, 20*time.Millisecond)
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, time.Second, WithCircuitBreaker(0, 0))

	for range 10 {
		_, err := c.MyOrders(context.Background())
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(10), hits.Load())
}
