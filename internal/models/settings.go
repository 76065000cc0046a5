package models

import "fmt"

type VpnSettings struct {
	KillSwitch     bool     `json:"killSwitch"`
	AutoConnect    bool     `json:"autoConnect"`
	SplitTunneling bool     `json:"splitTunneling"`
	Protocol       Protocol `json:"protocol"`
	DarkMode       bool     `json:"darkMode"`
}

func DefaultSettings() VpnSettings {
	return VpnSettings{
		KillSwitch:     false,
		AutoConnect:    false,
		SplitTunneling: false,
		Protocol:       ProtocolWireGuard,
		DarkMode:       true,
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	KillSwitch     *bool
	AutoConnect    *bool
	SplitTunneling *bool
	Protocol       *Protocol
	DarkMode       *bool
}

func (p SettingsPatch) Empty() bool {
	return p == SettingsPatch{}
}

// Apply returns the full record produced by applying p to s. s is never
// modified, and an invalid patch leaves nothing half applied.
func (s VpnSettings) Apply(p SettingsPatch) (VpnSettings, error) {
	next := s
	if p.Protocol != nil {
		proto, err := ParseProtocol(string(*p.Protocol))
		if err != nil {
			return s, err
		}
		next.Protocol = proto
	}
	if p.KillSwitch != nil {
		next.KillSwitch = *p.KillSwitch
	}
	if p.AutoConnect != nil {
		next.AutoConnect = *p.AutoConnect
	}
	if p.SplitTunneling != nil {
		next.SplitTunneling = *p.SplitTunneling
	}
	if p.DarkMode != nil {
		next.DarkMode = *p.DarkMode
	}
	return next, nil
}

// Normalize replaces fields that cannot be valid with their defaults and
// reports which ones it touched.
func (s VpnSettings) Normalize() (VpnSettings, []string) {
	var fixed []string
	if proto, err := ParseProtocol(string(s.Protocol)); err != nil {
		s.Protocol = DefaultSettings().Protocol
		fixed = append(fixed, "protocol")
	} else {
		s.Protocol = proto
	}
	return s, fixed
}

// ParseSettingsPatch builds a single-field patch from a settings key as it
// is stored on disk (e.g. "killSwitch") and a textual value.
func ParseSettingsPatch(key, value string) (SettingsPatch, error) {
	var p SettingsPatch
	parseBool := func() (*bool, error) {
		switch value {
		case "true", "on", "1", "yes":
			v := true
			return &v, nil
		case "false", "off", "0", "no":
			v := false
			return &v, nil
		}
		return nil, fmt.Errorf("invalid boolean %q for %s", value, key)
	}

	var err error
	switch key {
	case "killSwitch":
		p.KillSwitch, err = parseBool()
	case "autoConnect":
		p.AutoConnect, err = parseBool()
	case "splitTunneling":
		p.SplitTunneling, err = parseBool()
	case "darkMode":
		p.DarkMode, err = parseBool()
	case "protocol":
		var proto Protocol
		proto, err = ParseProtocol(value)
		p.Protocol = &proto
	default:
		err = fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return SettingsPatch{}, err
	}
	return p, nil
}
