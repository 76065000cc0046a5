package tunnel

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shieldvpn/internal/models"

	"golang.org/x/crypto/curve25519"
)

var ErrInvalidConfig = errors.New("invalid tunnel config")

func invalid(proto models.Protocol, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, proto, fmt.Sprintf(format, args...))
}

// ValidateConfig performs the structural check a config must pass before it
// is handed to a backend. It does not contact anything.
func ValidateConfig(proto models.Protocol, config string) error {
	if strings.TrimSpace(config) == "" {
		return invalid(proto, "config is empty")
	}

	switch proto {
	case models.ProtocolWireGuard:
		_, err := ParseWireGuard(config)
		return err
	case models.ProtocolOpenVPN:
		return validateOpenVPN(config)
	case models.ProtocolIKEv2:
		return validateIKEv2(config)
	default:
		return invalid(proto, "unsupported protocol")
	}
}

type WireGuardPeer struct {
	PublicKey  string
	Endpoint   string
	AllowedIPs []string
}

type WireGuardConfig struct {
	Addresses  []string
	DNS        []string
	PrivateKey string
	// PublicKey is derived from PrivateKey.
	PublicKey string
	Peers     []WireGuardPeer
}

// ParseWireGuard reads a wg-quick style config and checks that it has an
// [Interface] with a usable PrivateKey and at least one [Peer] with a
// usable PublicKey.
func ParseWireGuard(config string) (*WireGuardConfig, error) {
	proto := models.ProtocolWireGuard
	wc := &WireGuardConfig{}

	var (
		section      string
		hasInterface bool
		peer         *WireGuardPeer
	)

	sc := bufio.NewScanner(strings.NewReader(config))
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			switch section {
			case "interface":
				hasInterface = true
			case "peer":
				wc.Peers = append(wc.Peers, WireGuardPeer{})
				peer = &wc.Peers[len(wc.Peers)-1]
			default:
				return nil, invalid(proto, "line %d: unknown section [%s]", lineNo, section)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, invalid(proto, "line %d: expected key = value", lineNo)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch section {
		case "interface":
			switch key {
			case "privatekey":
				wc.PrivateKey = value
			case "address":
				wc.Addresses = append(wc.Addresses, splitList(value)...)
			case "dns":
				wc.DNS = append(wc.DNS, splitList(value)...)
			}
		case "peer":
			switch key {
			case "publickey":
				peer.PublicKey = value
			case "endpoint":
				peer.Endpoint = value
			case "allowedips":
				peer.AllowedIPs = append(peer.AllowedIPs, splitList(value)...)
			}
		default:
			return nil, invalid(proto, "line %d: key outside of a section", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !hasInterface {
		return nil, invalid(proto, "missing [Interface] section")
	}
	if len(wc.Peers) == 0 {
		return nil, invalid(proto, "missing [Peer] section")
	}
	if wc.PrivateKey == "" {
		return nil, invalid(proto, "missing PrivateKey")
	}

	priv, err := decodeKey(wc.PrivateKey)
	if err != nil {
		return nil, invalid(proto, "PrivateKey: %v", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, invalid(proto, "PrivateKey: %v", err)
	}
	wc.PublicKey = base64.StdEncoding.EncodeToString(pub)

	for i, p := range wc.Peers {
		if p.PublicKey == "" {
			return nil, invalid(proto, "peer %d: missing PublicKey", i+1)
		}
		if _, err := decodeKey(p.PublicKey); err != nil {
			return nil, invalid(proto, "peer %d: PublicKey: %v", i+1, err)
		}
	}

	return wc, nil
}

// TunnelAddress is the first interface address without its prefix length.
func (wc *WireGuardConfig) TunnelAddress() string {
	if len(wc.Addresses) == 0 {
		return ""
	}
	addr, _, _ := strings.Cut(wc.Addresses[0], "/")
	return addr
}

func decodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("not base64")
	}
	if len(b) != curve25519.ScalarSize {
		return nil, fmt.Errorf("want %d bytes, got %d", curve25519.ScalarSize, len(b))
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateOpenVPN(config string) error {
	proto := models.ProtocolOpenVPN
	var hasClient, hasRemote, hasCA bool

	sc := bufio.NewScanner(strings.NewReader(config))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		directive := strings.ToLower(strings.Fields(line)[0])
		switch directive {
		case "client", "tls-client":
			hasClient = true
		case "remote":
			hasRemote = len(strings.Fields(line)) > 1
		case "ca", "<ca>":
			hasCA = true
		}
	}

	switch {
	case !hasClient:
		return invalid(proto, "missing client directive")
	case !hasRemote:
		return invalid(proto, "missing remote directive")
	case !hasCA:
		return invalid(proto, "missing CA (<ca> block or ca directive)")
	}
	return nil
}

var (
	ikeRemoteAddrs = regexp.MustCompile(`(?m)^\s*remote_addrs\s*=\s*\S+`)
	ikeAuth        = regexp.MustCompile(`(?m)^\s*auth\s*=\s*\S+`)
)

func validateIKEv2(config string) error {
	proto := models.ProtocolIKEv2
	if !ikeRemoteAddrs.MatchString(config) {
		return invalid(proto, "missing remote_addrs")
	}
	if !ikeAuth.MatchString(config) {
		return invalid(proto, "missing auth")
	}
	return nil
}
