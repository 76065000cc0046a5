package tunnel

import (
	"testing"

	"shieldvpn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWireGuard = `
# sample
[Interface]
PrivateKey = yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk=
Address = 10.2.0.2/32, fd00::2/128
DNS = 10.2.0.1

[Peer]
PublicKey = xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg=
AllowedIPs = 0.0.0.0/0, ::/0
Endpoint = 138.199.52.193:51820
`

func TestParseWireGuard(t *testing.T) {
	wc, err := ParseWireGuard(sampleWireGuard)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.2.0.2/32", "fd00::2/128"}, wc.Addresses)
	assert.Equal(t, "10.2.0.2", wc.TunnelAddress())
	assert.Equal(t, []string{"10.2.0.1"}, wc.DNS)
	require.Len(t, wc.Peers, 1)
	assert.Equal(t, "138.199.52.193:51820", wc.Peers[0].Endpoint)
	assert.Equal(t, []string{"0.0.0.0/0", "::/0"}, wc.Peers[0].AllowedIPs)
	assert.Len(t, wc.PublicKey, 44)
	assert.NotEqual(t, wc.PrivateKey, wc.PublicKey)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name   string
		proto  models.Protocol
		config string
	}{
		{"empty", models.ProtocolWireGuard, "  \n"},
		{"no peer", models.ProtocolWireGuard, "[Interface]\nPrivateKey = yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk=\n"},
		{"short key", models.ProtocolWireGuard, "[Interface]\nPrivateKey = AAAA\n[Peer]\nPublicKey = xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg=\n"},
		{"bad peer key", models.ProtocolWireGuard, "[Interface]\nPrivateKey = yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk=\n[Peer]\nPublicKey = !!!\n"},
		{"unknown section", models.ProtocolWireGuard, "[Wat]\nx = y\n"},
		{"garbage line", models.ProtocolWireGuard, "[Interface]\njust words\n"},
		{"openvpn no ca", models.ProtocolOpenVPN, "client\nremote vpn.example.net 1194\n"},
		{"openvpn no remote", models.ProtocolOpenVPN, "client\nca ca.crt\n"},
		{"ikev2 no auth", models.ProtocolIKEv2, "remote_addrs = 203.0.113.7\n"},
		{"unknown protocol", models.Protocol("PPTP"), "anything"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.proto, tc.config)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	require.NoError(t, ValidateConfig(models.ProtocolWireGuard, sampleWireGuard))
	require.NoError(t, ValidateConfig(models.ProtocolOpenVPN, "client\n; comment\nremote vpn.example.net 1194\n<ca>\n...\n</ca>\n"))
	require.NoError(t, ValidateConfig(models.ProtocolIKEv2, "conn shield\n  remote_addrs = 203.0.113.7\n  auth = pubkey\n"))
}

func TestMapState(t *testing.T) {
	assert.Equal(t, models.StatusConnected, MapState("CONNECTED"))
	assert.Equal(t, models.StatusConnecting, MapState("reasserting"))
	assert.Equal(t, models.StatusReconnecting, MapState(" RECONNECTING "))
	assert.Equal(t, models.StatusError, MapState("ERROR"))
	assert.Equal(t, models.StatusDisconnected, MapState("SOMETHING_NEW"))
	assert.Equal(t, models.StatusDisconnected, MapState(""))
}
