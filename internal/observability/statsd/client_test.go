package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, name, want string
	}{
		{"prospection", "auth.transition", "prospection.auth.transition"},
		{"", " auth/login ", "auth_login"},
		{"ui", "foo..bar", "ui.foo.bar"},
		{"ui", "  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metricName(tt.prefix, tt.name), "prefix=%q name=%q", tt.prefix, tt.name)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " prospection-ui "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,result:success,service:prospection-ui", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestClientLine(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "prospection", globalTags: map[string]string{"env": "dev"}}
	assert.Equal(t, "prospection.auth.transition:1|c|#env:dev,op:login",
		c.line("auth.transition", "1", "c", map[string]string{"op": "login"}))
	assert.Empty(t, c.line("", "1", "c", nil))
}

func TestClientWritesOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	client, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String(), Prefix: "ui."})
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Enabled())

	client.Timing("auth.duration", 1500*time.Microsecond, nil)

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ui.auth.duration:1.5|ms", string(buf[:n]))
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	assert.True(t, client.Enabled())
	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())
	require.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
	nilClient.Count("ignored", 1, nil)
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}
