package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ua   string
		want string
	}{
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want: "Windows 10 - Chrome 120.0.0.0",
		},
		{
			name: "firefox on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: "Windows 10 - Firefox 121.0",
		},
		{name: "empty", ua: "", want: Unknown},
		{name: "blank", ua: "   ", want: Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Describe(tc.ua), tc.name)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                string
		xff, realIP, remote string
		want                string
	}{
		{"forwarded first hop", "203.0.113.7, 10.0.0.1", "198.51.100.2", "127.0.0.1:5000", "203.0.113.7"},
		{"real ip", "", "198.51.100.2", "127.0.0.1:5000", "198.51.100.2"},
		{"socket", "", "", "192.0.2.10:44321", "192.0.2.10"},
		{"socket without port", "", "", "192.0.2.10", "192.0.2.10"},
		{"blank forwarded falls through", " , ", "", "192.0.2.10:1", "192.0.2.10"},
		{"nothing", "", "", "", Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClientIP(tc.xff, tc.realIP, tc.remote), tc.name)
	}
}
