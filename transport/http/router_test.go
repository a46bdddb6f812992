package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dropbox/godropbox/time2"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/flowauth/adapters/events"
	"github.com/layer-3/flowauth/adapters/store"
	"github.com/layer-3/flowauth/adapters/tokenizer"
	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/internal/metrics"
	"github.com/layer-3/flowauth/internal/ratelimit"
	"github.com/layer-3/flowauth/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xf8d6e0586b0a20c7"

var errLedger = errors.New("access node unavailable")

// stubVerifier accepts the signature "good" and fails on "ledger-down"
type stubVerifier struct{}

func (stubVerifier) VerifyAccountProof(_ context.Context, _ string, proof *core.AccountProof) (bool, error) {
	if len(proof.Signatures) != 1 {
		return false, nil
	}
	switch proof.Signatures[0] {
	case "good":
		return true, nil
	case "ledger-down":
		return false, errLedger
	}
	return false, nil
}

type testServer struct {
	router *gin.Engine
	clock  *time2.MockClock
	store  *store.MemoryStore
}

func newTestServer(t *testing.T, limiter *ratelimit.KeyedLimiter) *testServer {
	t.Helper()
	return newTestServerWith(t, RouterConfig{Limiter: limiter})
}

func newTestServerWith(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	clock := time2.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	memory := store.NewMemoryStore()
	pubSub := events.NewInProcessPubSub(watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	registry := prometheus.NewRegistry()

	authService := service.NewAuthService(
		service.DefaultAuthConfig(),
		memory,
		memory,
		stubVerifier{},
		tokenizer.NewJWTTokenizer(key, "flowauth", "", clock),
		events.NewWatermillPublisher(pubSub),
		service.WithClock(clock),
		service.WithMetrics(metrics.New(registry)),
	)
	daoService := service.NewDAOService(memory, clock)

	cfg.Gatherer = registry
	router := SetupRouter(authService, daoService, cfg)
	return &testServer{router: router, clock: clock, store: memory}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) nonce(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/generateNonce", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[generateNonceResponse](t, rec).Nonce
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/generateAuthToken", "", gin.H{
		"address":    testAddress,
		"nonce":      s.nonce(t),
		"keyIds":     []int{0},
		"signatures": []string{"good"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[Envelope](t, rec)
	require.Equal(t, StatusSuccess, env.Status)
	return env.Token
}

func TestGenerateNonce(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/generateNonce", "", gin.H{"appID": "Attacker App"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[generateNonceResponse](t, rec)
	assert.Len(t, resp.Nonce, 64)
	assert.Equal(t, "DAO LLC Governance Portal (v0.1)", resp.AppID)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestGenerateNonceCallableWrapper(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/generateNonce", "", gin.H{"data": gin.H{}})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[struct {
		Result generateNonceResponse `json:"result"`
	}](t, rec)
	assert.Len(t, resp.Result.Nonce, 64)
}

func TestGenerateAuthToken(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		body    func(nonce string) any
		advance time.Duration
		status  int
		want    Envelope
	}{
		{
			name: "success",
			body: func(nonce string) any {
				return gin.H{"address": testAddress, "nonce": nonce, "keyIds": []int{0}, "signatures": []string{"good"}}
			},
			status: http.StatusOK,
			want:   Envelope{Status: StatusSuccess},
		},
		{
			name: "wallet signature objects",
			body: func(nonce string) any {
				return gin.H{"address": testAddress, "nonce": nonce, "signatures": []gin.H{{"addr": testAddress, "keyId": 0, "signature": "good"}}}
			},
			status: http.StatusOK,
			want:   Envelope{Status: StatusSuccess},
		},
		{
			name: "callable wrapper",
			body: func(nonce string) any {
				return gin.H{"data": gin.H{"address": testAddress, "nonce": nonce, "keyIds": []int{0}, "signatures": []string{"bad"}}}
			},
			status: http.StatusOK,
			want:   Envelope{Status: StatusError, Msg: MsgInvalidAccountProof},
		},
		{
			name: "unknown nonce",
			body: func(string) any {
				return gin.H{"address": testAddress, "nonce": "deadbeef", "keyIds": []int{0}, "signatures": []string{"good"}}
			},
			status: http.StatusOK,
			want:   Envelope{Status: StatusError, Msg: MsgInvalidNonce},
		},
		{
			name: "expired nonce",
			body: func(nonce string) any {
				return gin.H{"address": testAddress, "nonce": nonce, "keyIds": []int{0}, "signatures": []string{"good"}}
			},
			advance: 61 * time.Second,
			status:  http.StatusOK,
			want:    Envelope{Status: StatusError, Msg: MsgExpiredNonce},
		},
		{
			name: "invalid proof",
			body: func(nonce string) any {
				return gin.H{"address": testAddress, "nonce": nonce, "keyIds": []int{0}, "signatures": []string{"bad"}}
			},
			status: http.StatusOK,
			want:   Envelope{Status: StatusError, Msg: MsgInvalidAccountProof},
		},
		{
			name: "ledger failure",
			body: func(nonce string) any {
				return gin.H{"address": testAddress, "nonce": nonce, "keyIds": []int{0}, "signatures": []string{"ledger-down"}}
			},
			status: http.StatusInternalServerError,
			want:   Envelope{Status: StatusError, Msg: MsgInternalError},
		},
		{
			name:   "missing address",
			body:   func(nonce string) any { return gin.H{"nonce": nonce} },
			status: http.StatusBadRequest,
			want:   Envelope{Status: StatusError, Msg: MsgInvalidRequest},
		},
		{
			name:   "malformed json",
			body:   func(string) any { return `{"address":` },
			status: http.StatusBadRequest,
			want:   Envelope{Status: StatusError, Msg: MsgInvalidRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonce := s.nonce(t)
			s.clock.Advance(tt.advance)

			rec := s.do(t, http.MethodPost, "/v1/generateAuthToken", "", tt.body(nonce))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var got Envelope
			if bytes.Contains(rec.Body.Bytes(), []byte(`"result"`)) {
				got = decode[struct {
					Result Envelope `json:"result"`
				}](t, rec).Result
			} else {
				got = decode[Envelope](t, rec)
			}

			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.Msg, got.Msg)
			if tt.want.Status == StatusSuccess {
				assert.NotEmpty(t, got.Token)
			} else {
				assert.Empty(t, got.Token)
			}
		})
	}
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t)

	rec := s.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAddress, decode[map[string]string](t, rec)["address"])

	rec = s.do(t, http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgUnauthorized, decode[Envelope](t, rec).Msg)
}

func TestCreateDAO(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t)

	rec := s.do(t, http.MethodPost, "/v1/daos", token, gin.H{
		"name":    "Example DAO",
		"members": []gin.H{{"id": testAddress, "name": "Alice"}, {"id": "0x01cf0e2f2f715450", "name": "Bob"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[Envelope](t, rec)
	assert.Equal(t, StatusCreated, env.Status)

	dao, ok := s.store.DAO(env.ID)
	require.True(t, ok)
	assert.Equal(t, testAddress, dao.CreatedBy)

	rec = s.do(t, http.MethodPost, "/v1/daos", token, gin.H{
		"name":    "Example DAO",
		"members": []gin.H{{"id": "0x01cf0e2f2f715450"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Envelope{Status: StatusError, Msg: MsgCreatorNotMember}, decode[Envelope](t, rec))

	rec = s.do(t, http.MethodPost, "/v1/daos", token, gin.H{"name": "Example DAO", "members": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/daos", "", gin.H{"name": "Example DAO", "members": []gin.H{{"id": testAddress}}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, ratelimit.New(0.001, 2, time.Minute))

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/v1/generateNonce", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/v1/generateNonce", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, MsgTooManyRequests, decode[Envelope](t, rec).Msg)

	// health checks are not limited
	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// nonceFrom requests a nonce over a connection from remoteAddr
func (s *testServer) nonceFrom(remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/v1/generateNonce", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, ratelimit.New(0.001, 2, time.Minute))

	limited := 0
	for i := 0; i < 20; i++ {
		if s.nonceFrom("203.0.113.7:41000", fmt.Sprintf("10.0.0.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 18, limited)

	// another peer has its own budget
	assert.Equal(t, http.StatusOK, s.nonceFrom("203.0.113.8:41000", ""))
}

func TestRateLimitTrustedProxy(t *testing.T) {
	s := newTestServerWith(t, RouterConfig{
		Limiter:        ratelimit.New(0.001, 2, time.Minute),
		TrustedProxies: []string{"192.0.2.0/24"},
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, s.nonceFrom("192.0.2.10:443", fmt.Sprintf("10.0.0.%d", i)))
	}

	assert.Equal(t, http.StatusOK, s.nonceFrom("192.0.2.10:443", "10.0.1.1"))
	assert.Equal(t, http.StatusOK, s.nonceFrom("192.0.2.11:443", "10.0.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, s.nonceFrom("192.0.2.10:443", "10.0.1.1"))
}

func TestInvalidTrustedProxiesTrustNone(t *testing.T) {
	s := newTestServerWith(t, RouterConfig{
		Limiter:        ratelimit.New(0.001, 1, time.Minute),
		TrustedProxies: []string{"not-an-ip"},
	})

	assert.Equal(t, http.StatusOK, s.nonceFrom("198.51.100.1:1000", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, s.nonceFrom("198.51.100.1:1000", "10.0.0.2"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.nonce(t)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowauth_nonces_issued_total 1")
}

func TestEnvelopeFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{core.ErrInvalidNonce, http.StatusOK, MsgInvalidNonce},
		{core.ErrExpiredNonce, http.StatusOK, MsgExpiredNonce},
		{core.ErrInvalidAccountProof, http.StatusOK, MsgInvalidAccountProof},
		{core.ErrCreatorNotMember, http.StatusOK, MsgCreatorNotMember},
		{core.ErrTokenInvalidated, http.StatusUnauthorized, MsgUnauthorized},
		{errors.Join(errors.New("failed to store nonce"), errLedger), http.StatusInternalServerError, MsgInternalError},
	}

	for _, tt := range tests {
		status, env := envelopeFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, StatusError, env.Status)
		assert.Equal(t, tt.msg, env.Msg)
	}
}
