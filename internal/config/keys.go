package config

import (
	"os"
	"strings"
)

// IdentitySource represents where the SEC contact identity comes from.
type IdentitySource string

const (
	SourceEnv    IdentitySource = "env"
	SourceConfig IdentitySource = "config"
	SourceNone   IdentitySource = "none"
)

// IdentityStatus describes one identity setting for the status command.
type IdentityStatus struct {
	Name   string         `json:"name"`
	Source IdentitySource `json:"source"`
	IsSet  bool           `json:"is_set"`
	Masked string         `json:"masked,omitempty"` // e.g., "jan...@example.org"
}

// CheckIdentity returns the status of the settings that make up the SEC User-Agent.
func CheckIdentity(cfg *Config) []IdentityStatus {
	return []IdentityStatus{
		checkSetting("SEC contact email", cfg.SEC.Email, maskEmail, "SECFACTS_SEC_EMAIL", "SEC_EMAIL"),
		checkSetting("SEC user agent", cfg.SEC.UserAgent, nil, "SECFACTS_SEC_USER_AGENT"),
	}
}

// checkSetting checks if a value is set and where it came from.
func checkSetting(name, value string, mask func(string) string, envVars ...string) IdentityStatus {
	status := IdentityStatus{
		Name:  name,
		IsSet: value != "",
	}
	if value == "" {
		status.Source = SourceNone
		return status
	}

	status.Source = SourceConfig
	for _, env := range envVars {
		if os.Getenv(env) == value {
			status.Source = SourceEnv
			break
		}
	}
	if mask != nil {
		status.Masked = mask(value)
	} else {
		status.Masked = value
	}
	return status
}

// maskEmail keeps the first 3 characters of the local part and the domain.
func maskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return maskKey(email)
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 3 {
		return "***" + domain
	}
	return local[:3] + "..." + domain
}

// maskKey masks a value for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
