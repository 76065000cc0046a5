package models

import (
	"fmt"
	"strings"
)

type Protocol string

const (
	ProtocolWireGuard Protocol = "WireGuard"
	ProtocolOpenVPN   Protocol = "OpenVPN"
	ProtocolIKEv2     Protocol = "IKEv2"
)

var Protocols = []Protocol{ProtocolWireGuard, ProtocolOpenVPN, ProtocolIKEv2}

func ParseProtocol(s string) (Protocol, error) {
	for _, p := range Protocols {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

func (p Protocol) Valid() bool {
	_, err := ParseProtocol(string(p))
	return err == nil
}

// Server is one catalog entry. Config is the transport-specific blob handed
// to the tunnel backend untouched.
type Server struct {
	ID        string   `toml:"id" json:"id"`
	Country   string   `toml:"country" json:"country"`
	City      string   `toml:"city" json:"city"`
	Flag      string   `toml:"flag" json:"flag"`
	IP        string   `toml:"ip" json:"ip"`
	Protocol  Protocol `toml:"protocol" json:"protocol"`
	IsPremium bool     `toml:"premium" json:"isPremium"`
	Ping      int      `toml:"ping" json:"ping"`
	Load      int      `toml:"load" json:"load"`
	Config    string   `toml:"config" json:"-"`
}

func (s Server) DisplayName() string {
	switch {
	case s.City != "" && s.Country != "":
		return s.City + ", " + s.Country
	case s.Country != "":
		return s.Country
	default:
		return s.ID
	}
}
