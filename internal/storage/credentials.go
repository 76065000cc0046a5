package storage

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	credentialService = "shieldvpn"
	keyVpnUsername    = "vpn_username"
	keyVpnPassword    = "vpn_password"
)

// Credentials authenticate against servers that require user/pass auth
// (OpenVPN auth-user-pass).
type Credentials struct {
	Username string
	Password string
}

// CredentialStore keeps credentials in the OS keyring.
type CredentialStore struct {
	service string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{service: credentialService}
}

// Save stores both values or neither.
func (c *CredentialStore) Save(creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return &PersistenceError{Op: "save", Key: keyVpnUsername, Err: errors.New("username and password are required")}
	}

	prevUser, prevErr := keyring.Get(c.service, keyVpnUsername)

	if err := keyring.Set(c.service, keyVpnUsername, creds.Username); err != nil {
		return &PersistenceError{Op: "save", Key: keyVpnUsername, Err: err}
	}
	if err := keyring.Set(c.service, keyVpnPassword, creds.Password); err != nil {
		if prevErr == nil {
			_ = keyring.Set(c.service, keyVpnUsername, prevUser)
		} else {
			_ = keyring.Delete(c.service, keyVpnUsername)
		}
		return &PersistenceError{Op: "save", Key: keyVpnPassword, Err: err}
	}
	return nil
}

// Get reports found=false unless both values are present.
func (c *CredentialStore) Get() (Credentials, bool, error) {
	user, err := keyring.Get(c.service, keyVpnUsername)
	if errors.Is(err, keyring.ErrNotFound) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, &PersistenceError{Op: "load", Key: keyVpnUsername, Err: err}
	}

	pass, err := keyring.Get(c.service, keyVpnPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, &PersistenceError{Op: "load", Key: keyVpnPassword, Err: err}
	}

	if user == "" || pass == "" {
		return Credentials{}, false, nil
	}
	return Credentials{Username: user, Password: pass}, true, nil
}

func (c *CredentialStore) Clear() error {
	for _, key := range []string{keyVpnUsername, keyVpnPassword} {
		if err := keyring.Delete(c.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return &PersistenceError{Op: "delete", Key: key, Err: err}
		}
	}
	return nil
}
