package pkg

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPIsLocal(t *testing.T) {
	cases := []struct {
		ip              string
		expectedIsLocal bool
	}{
		{ip: "83.12.53.65", expectedIsLocal: false},
		{ip: "127.0.0.1", expectedIsLocal: true},
		{ip: "127.23.0.1", expectedIsLocal: true},
		{ip: "::1", expectedIsLocal: true},
		{ip: "172.20.0.1", expectedIsLocal: true},
		{ip: "172.19.0.1", expectedIsLocal: true},
		{ip: "172.19.0.12", expectedIsLocal: false},
		{ip: "111.12.56.65", expectedIsLocal: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expectedIsLocal, IPIsLocal(tc.ip), tc.ip)
	}
}

func TestReadUserIP(t *testing.T) {
	for _, tc := range []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
		expectErr  bool
	}{
		{name: "RemoteAddr", remoteAddr: "83.12.53.65:2145", expected: "83.12.53.65"},
		{name: "RealIP", remoteAddr: "10.0.0.2:80", headers: map[string]string{"X-Real-Ip": "83.12.53.65"}, expected: "83.12.53.65"},
		{name: "ForwardedChain", remoteAddr: "10.0.0.2:80", headers: map[string]string{"X-Forwarded-For": "111.12.56.65, 10.0.0.1"}, expected: "111.12.56.65"},
		{name: "IPv6", remoteAddr: "[2001:db8::1]:443", expected: "2001:db8::1"},
		{name: "DockerGateway", remoteAddr: "172.20.0.1:60102", expected: "localhost"},
		{name: "Loopback", remoteAddr: "127.0.0.1:5000", expected: "localhost"},
		{name: "Garbage", remoteAddr: "not-an-ip", expectErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/completions", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			ip, err := ReadUserIP(req)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ip)
		})
	}
}
