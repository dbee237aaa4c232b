package ipchecker

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTrustedSubnet(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)
	require.False(t, checker.IsTrustedSubnetEmpty())

	assert.True(t, checker.Check(net.ParseIP("192.168.1.42")))
	assert.False(t, checker.Check(net.ParseIP("10.0.0.1")))
}

func TestEmptySubnetDisablesChecker(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)

	assert.True(t, checker.IsTrustedSubnetEmpty())
	assert.False(t, checker.Check(net.ParseIP("192.168.1.42")))
}

func TestNewRejectsMalformedCIDR(t *testing.T) {
	_, err := New("not-a-subnet")
	assert.Error(t, err)
}

func TestGetClientIPPrefersXRealIP(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Real-IP", "192.168.1.7")
	request.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	ip, err := checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.7", ip.String())
}

func TestGetClientIPFallsBackToForwardedFor(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.2")

	ip, err := checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.9", ip.String())
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.168.1.3:51234"

	ip, err := checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.3", ip.String())
}
