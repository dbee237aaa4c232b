package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipr-link/clipr/internal/logger"
	"github.com/clipr-link/clipr/internal/user"
)

var testSigningKey = []byte("test-token-signing-key")

func newTestAuth(tokenTTL time.Duration) *Auth {
	return New(testSigningKey, tokenTTL)
}

func initTestLogger(t *testing.T) {
	t.Helper()
	require.NoError(t, logger.Init("debug"))
}

func TestIssueAndParseTokenRoundTrip(t *testing.T) {
	theAuth := newTestAuth(30 * time.Minute)

	usr := &user.User{
		ID:    "8e9f0c3b-8f3c-4d38-9f26-29d1f2a9a111",
		Name:  "Alice Smith",
		Email: "alice@example.com",
	}

	tokenString, err := theAuth.IssueToken(usr)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	identity, err := theAuth.ParseToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, usr.ID, identity.ID)
	assert.Equal(t, usr.Email, identity.Email)
	assert.Equal(t, usr.Name, identity.Name)
}

func TestParseTokenExpired(t *testing.T) {
	theAuth := newTestAuth(-time.Minute)

	tokenString, err := theAuth.IssueToken(&user.User{ID: "1"})
	require.NoError(t, err)

	_, err = theAuth.ParseToken(tokenString)
	assert.Error(t, err)
}

func TestParseTokenTamperedSignature(t *testing.T) {
	theAuth := newTestAuth(30 * time.Minute)

	tokenString, err := theAuth.IssueToken(&user.User{ID: "1"})
	require.NoError(t, err)

	tampered := tokenString[:len(tokenString)-2] + "xx"

	_, err = theAuth.ParseToken(tampered)
	assert.Error(t, err)
}

func TestParseTokenSignedWithDifferentKey(t *testing.T) {
	issuer := New([]byte("some-other-key"), 30*time.Minute)
	verifier := newTestAuth(30 * time.Minute)

	tokenString, err := issuer.IssueToken(&user.User{ID: "1"})
	require.NoError(t, err)

	_, err = verifier.ParseToken(tokenString)
	assert.Error(t, err)
}

func TestHashPasswordVerifiesOriginalOnly(t *testing.T) {
	hash, err := HashPassword("secretpw")
	require.NoError(t, err)
	require.NotEqual(t, "secretpw", hash)

	assert.NoError(t, CheckPassword(hash, "secretpw"))
	assert.Error(t, CheckPassword(hash, "secretpW"))
}

func TestDecodeIdentityMiddleware(t *testing.T) {
	initTestLogger(t)

	theAuth := newTestAuth(30 * time.Minute)

	usr := &user.User{
		ID:    "user-1",
		Name:  "Alice Smith",
		Email: "alice@example.com",
	}
	validToken, err := theAuth.IssueToken(usr)
	require.NoError(t, err)

	testCases := []struct {
		name             string
		authHeader       string
		expectedStatus   int
		expectedIdentity bool
	}{
		{
			name:             "no_header_passes_through_unauthenticated",
			authHeader:       "",
			expectedStatus:   http.StatusOK,
			expectedIdentity: false,
		},
		{
			name:           "missing_bearer_prefix",
			authHeader:     "Token " + validToken,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing_token_segment",
			authHeader:     "Bearer",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid_token",
			authHeader:     "Bearer not-a-token",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:             "valid_token_attaches_identity",
			authHeader:       "Bearer " + validToken,
			expectedStatus:   http.StatusOK,
			expectedIdentity: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var gotIdentity *Identity
			handler := theAuth.DecodeIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if testCase.authHeader != "" {
				request.Header.Set("Authorization", testCase.authHeader)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, testCase.expectedStatus, recorder.Code)
			if testCase.expectedIdentity {
				require.NotNil(t, gotIdentity)
				assert.Equal(t, usr.ID, gotIdentity.ID)
				assert.Equal(t, usr.Email, gotIdentity.Email)
				assert.Equal(t, usr.Name, gotIdentity.Name)
			} else {
				assert.Nil(t, gotIdentity)
			}
		})
	}
}

func TestRequireIdentityMiddleware(t *testing.T) {
	initTestLogger(t)

	theAuth := newTestAuth(30 * time.Minute)

	guarded := theAuth.RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token, err := theAuth.IssueToken(&user.User{ID: "user-1"})
	require.NoError(t, err)

	chain := theAuth.DecodeIdentity(guarded)
	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder = httptest.NewRecorder()
	chain.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
