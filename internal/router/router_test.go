package router

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clipr-link/clipr/internal/auth"
	"github.com/clipr-link/clipr/internal/db/memorystorage"
	"github.com/clipr-link/clipr/internal/ipchecker"
	"github.com/clipr-link/clipr/internal/logger"
	"github.com/clipr-link/clipr/internal/mockstorage"
	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/service"
)

const (
	testTrustedSubnet = "192.168.1.0/24"
	testShortURLBase  = "http://localhost:8080"
)

var testSigningKey = []byte("router-test-signing-key")

type testServerOptions struct {
	tokenTTL      time.Duration
	trustedSubnet string
	db            storage
	svc           shortenerService
}

type testServerOption func(*testServerOptions)

func withTokenTTL(ttl time.Duration) testServerOption {
	return func(o *testServerOptions) { o.tokenTTL = ttl }
}

func withTrustedSubnet(subnet string) testServerOption {
	return func(o *testServerOptions) { o.trustedSubnet = subnet }
}

func withStorage(db storage, svc shortenerService) testServerOption {
	return func(o *testServerOptions) {
		o.db = db
		o.svc = svc
	}
}

func newTestServer(t *testing.T, optionsProto ...testServerOption) *httptest.Server {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	options := &testServerOptions{
		tokenTTL:      30 * time.Minute,
		trustedSubnet: testTrustedSubnet,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if options.db == nil {
		db, err := memorystorage.New()
		require.NoError(t, err)
		options.db = db
		options.svc = service.New(db, func(shortCode string) string {
			return testShortURLBase + "/urls/" + shortCode
		})
	}

	theAuth := auth.New(testSigningKey, options.tokenTTL)

	ipChecker, err := ipchecker.New(options.trustedSubnet)
	require.NoError(t, err)

	srv := httptest.NewServer(New(options.db, options.svc, theAuth, ipChecker))
	t.Cleanup(srv.Close)

	return srv
}

func signupUser(t *testing.T, srv *httptest.Server, name, email, password string) string {
	t.Helper()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":     name,
			"email":    email,
			"password": password,
		}).
		Post(srv.URL + "/users/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var body models.SignupResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.NotEmpty(t, body.UserID)

	return body.UserID
}

func loginUser(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"email":    email,
			"password": password,
		}).
		Post(srv.URL + "/users/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var body models.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.NotEmpty(t, body.SessionToken)

	return body.SessionToken
}

func shortenURL(t *testing.T, srv *httptest.Server, token, targetURL string) *models.ShortURL {
	t.Helper()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+token).
		SetBody(models.ShortenRequest{TargetURL: targetURL}).
		Post(srv.URL + "/urls/shorten")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var body models.ShortenResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.NotNil(t, body.Data)

	return body.Data
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestFullUserJourney(t *testing.T) {
	srv := newTestServer(t)

	userID := signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	assert.NotEmpty(t, userID)

	token := loginUser(t, srv, "alice@example.com", "secretpw")

	record := shortenURL(t, srv, token, "https://openai.com")
	assert.Len(t, record.ShortCode, 6)
	assert.Equal(t, "https://openai.com", record.TargetURL)
	assert.Equal(t, userID, record.UserID)

	// Public redirect, no token required.
	resp, err := noRedirectClient().Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://openai.com", resp.Header.Get("Location"))

	// Deleting without a token is rejected by the guard.
	request, err := http.NewRequest(http.MethodDelete, srv.URL+"/urls/"+record.ShortCode, nil)
	require.NoError(t, err)
	deleteResp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer deleteResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, deleteResp.StatusCode)

	// Deleting as the owner succeeds and the mapping disappears.
	restyResp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+token).
		Delete(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, restyResp.StatusCode())

	resp, err = noRedirectClient().Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRoot(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().Get(srv.URL + "/")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Server is up and running..."}`, string(resp.Body()))
}

func TestPostUsersSignupValidation(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name          string
		body          map[string]string
		expectedField string
	}{
		{
			name: "name_too_short",
			body: map[string]string{
				"name":     "Al",
				"email":    "alice@example.com",
				"password": "secretpw",
			},
			expectedField: "name",
		},
		{
			name: "invalid_email",
			body: map[string]string{
				"name":     "Alice Smith",
				"email":    "not-an-email",
				"password": "secretpw",
			},
			expectedField: "email",
		},
		{
			name: "password_too_short",
			body: map[string]string{
				"name":     "Alice Smith",
				"email":    "alice@example.com",
				"password": "short",
			},
			expectedField: "password",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(srv.URL + "/users/signup")
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

			var body struct {
				Message struct {
					Properties map[string]json.RawMessage `json:"properties"`
				} `json:"message"`
			}
			require.NoError(t, json.Unmarshal(resp.Body(), &body))
			assert.Contains(t, body.Message.Properties, testCase.expectedField)
		})
	}
}

func TestPostUsersSignupDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":     "Other Alice",
			"email":    "alice@example.com",
			"password": "anotherpw",
		}).
		Post(srv.URL + "/users/signup")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"message":"User already exists"}`, string(resp.Body()))
}

func TestPostUsersLoginFailures(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"email":    "nobody@example.com",
			"password": "secretpw",
		}).
		Post(srv.URL + "/users/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"email":    "alice@example.com",
			"password": "wrong-password",
		}).
		Post(srv.URL + "/users/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Incorrect password"}`, string(resp.Body()))
}

func TestPostUrlsShortenRejectsMalformedTargetURL(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	token := loginUser(t, srv, "alice@example.com", "secretpw")

	// The error body must stay a readable JSON envelope for a client that
	// accepts gzip: the response arrives compressed with the matching
	// Content-Encoding header.
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Encoding", "gzip").
		SetHeader("Authorization", "Bearer "+token).
		SetBody(map[string]string{"targetURL": "not a url"}).
		Post(srv.URL + "/urls/shorten")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "gzip", resp.Header().Get("Content-Encoding"))

	var body struct {
		Message struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Contains(t, body.Message.Properties, "targetURL")
}

func TestGuardedRoutesRequireAuthentication(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"shorten", http.MethodPost, "/urls/shorten"},
		{"list_own", http.MethodGet, "/urls"},
		{"remove", http.MethodDelete, "/urls/abc123"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request, err := http.NewRequest(testCase.method, srv.URL+testCase.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(request)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name       string
		authHeader string
	}{
		{"wrong_scheme", "Token abc"},
		{"missing_token_segment", "Bearer"},
		{"garbage_token", "Bearer not-a-token"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Authorization", testCase.authHeader).
				Get(srv.URL + "/urls")
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
		})
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	srv := newTestServer(t, withTokenTTL(-time.Minute))

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")

	// The login succeeds but the issued token is already expired.
	token := loginUser(t, srv, "alice@example.com", "secretpw")

	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+token).
		Get(srv.URL + "/urls")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestGetRedirectUnknownShortCode(t *testing.T) {
	srv := newTestServer(t)

	resp, err := noRedirectClient().Get(srv.URL + "/urls/zzzzzz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUserUrlsIsScopedToCaller(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	signupUser(t, srv, "Robert Brown", "bob@example.com", "secretpw")

	aliceToken := loginUser(t, srv, "alice@example.com", "secretpw")
	bobToken := loginUser(t, srv, "bob@example.com", "secretpw")

	aliceRecord := shortenURL(t, srv, aliceToken, "https://example.com/alice")
	bobRecord := shortenURL(t, srv, bobToken, "https://example.com/bob")

	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+aliceToken).
		Get(srv.URL + "/urls")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var body models.UserURLsResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.Len(t, body.Data, 1)

	assert.Equal(t, aliceRecord.ShortCode, body.Data[0].ShortCode)
	assert.Equal(t, testShortURLBase+"/urls/"+aliceRecord.ShortCode, body.Data[0].ShortLink)
	assert.NotEqual(t, bobRecord.ShortCode, body.Data[0].ShortCode)
}

func TestDeleteForeignShortCodeIsForbidden(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	signupUser(t, srv, "Robert Brown", "bob@example.com", "secretpw")

	aliceToken := loginUser(t, srv, "alice@example.com", "secretpw")
	bobToken := loginUser(t, srv, "bob@example.com", "secretpw")

	record := shortenURL(t, srv, aliceToken, "https://example.com/page")

	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+bobToken).
		Delete(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	// An unknown code yields the same status, concealing existence.
	resp, err = resty.New().R().
		SetHeader("Authorization", "Bearer "+bobToken).
		Delete(srv.URL + "/urls/zzzzzz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	// The record survived the foreign delete attempt.
	redirectResp, err := noRedirectClient().Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	defer redirectResp.Body.Close()
	assert.Equal(t, http.StatusFound, redirectResp.StatusCode)
}

func TestRedirectTargetMatchesExactly(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	token := loginUser(t, srv, "alice@example.com", "secretpw")

	record := shortenURL(t, srv, token, "https://example.com/page")

	resp, err := noRedirectClient().Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/page", resp.Header.Get("Location"))
}

func TestPostUrlsShortenAcceptsGzippedBody(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	token := loginUser(t, srv, "alice@example.com", "secretpw")

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	_, err := gzipWriter.Write([]byte(`{"targetURL":"https://example.com/gzipped"}`))
	require.NoError(t, err)
	require.NoError(t, gzipWriter.Close())

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Accept-Encoding", "gzip").
		SetHeader("Authorization", "Bearer "+token).
		SetBody(buf.Bytes()).
		Post(srv.URL + "/urls/shorten")
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var body models.ShortenResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.NotNil(t, body.Data)
	assert.Equal(t, "https://example.com/gzipped", body.Data.TargetURL)
}

func TestGetApiInternalStats(t *testing.T) {
	srv := newTestServer(t)

	signupUser(t, srv, "Alice Smith", "alice@example.com", "secretpw")
	token := loginUser(t, srv, "alice@example.com", "secretpw")
	shortenURL(t, srv, token, "https://example.com/1")
	shortenURL(t, srv, token, "https://example.com/2")

	resp, err := resty.New().R().
		SetHeader("X-Real-IP", "192.168.1.42").
		Get(srv.URL + "/api/internal/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var body models.StatsResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, int64(2), body.URLs)
	assert.Equal(t, int64(1), body.Users)

	resp, err = resty.New().R().
		SetHeader("X-Real-IP", "10.0.0.1").
		Get(srv.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestGetApiInternalStatsDisabledWithoutSubnet(t *testing.T) {
	srv := newTestServer(t, withTrustedSubnet(""))

	resp, err := resty.New().R().
		SetHeader("X-Real-IP", "192.168.1.42").
		Get(srv.URL + "/api/internal/stats")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestPostUsersSignupPersistenceError(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("FindUserByEmail", mock.Anything, "alice@example.com").Return(nil, false, nil)
	db.On("CreateUser", mock.Anything, mock.Anything).Return(nil, errors.New("insert did not return a row"))

	svc := service.New(db, nil)
	srv := newTestServer(t, withStorage(db, svc))

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":     "Alice Smith",
			"email":    "alice@example.com",
			"password": "secretpw",
		}).
		Post(srv.URL + "/users/signup")
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Failed to signup the user"}`, string(resp.Body()))
}

func TestGetPing(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().Get(srv.URL + "/ping")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetPingStorageFailure(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("Ping", mock.Anything).Return(fmt.Errorf("connection refused"))

	svc := service.New(db, nil)
	srv := newTestServer(t, withStorage(db, svc))

	resp, err := resty.New().R().Get(srv.URL + "/ping")
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
}
