package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ValidationError represents a launcher config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
func Validate(c *Config) error {
	var errors []string
	add := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	if c.Version != 1 {
		add(ValidationError{Field: "version", Message: fmt.Sprintf("unsupported version %d", c.Version)})
	}
	add(validateRepository(c.Repository))
	add(validateBaseURL("api_base_url", c.APIBaseURL))
	add(validateBaseURL("download_base_url", c.DownloadBaseURL))
	add(validateClientBinary(c.ClientBinary))

	if strings.TrimSpace(c.Release) == "" {
		add(ValidationError{Field: "release", Message: "release is required (use \"latest\" to follow the newest)"})
	}

	for field, d := range map[string]Duration{
		"network.connect_timeout":  c.Network.ConnectTimeout,
		"network.metadata_timeout": c.Network.MetadataTimeout,
		"progress_interval":        c.ProgressInterval,
		"lock_timeout":             c.LockTimeout,
	} {
		if d <= 0 {
			add(ValidationError{Field: field, Message: "must be a positive duration"})
		}
	}

	if c.HistoryKeep < 0 {
		add(ValidationError{Field: "history_keep", Message: "cannot be negative"})
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add(ValidationError{Field: "log.level", Message: err.Error()})
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateRepository(r Repository) error {
	if r.Owner == "" {
		return ValidationError{Field: "repository.owner", Message: "owner is required"}
	}
	if r.Name == "" {
		return ValidationError{Field: "repository.name", Message: "name is required"}
	}
	if strings.Contains(r.Owner, "/") || strings.Contains(r.Name, "/") {
		return ValidationError{Field: "repository", Message: "owner and name must not contain '/'"}
	}
	return nil
}

func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: field, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: field, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return ValidationError{Field: field, Message: "host is required"}
	}
	return nil
}

func validateClientBinary(name string) error {
	if name == "" {
		return ValidationError{Field: "client_binary", Message: "client_binary is required"}
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ValidationError{Field: "client_binary", Message: "must be a file name, not a path"}
	}
	return nil
}
