package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".catkey.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .catkey.yaml configuration file.
// The file carries the non-secret, rarely-changing parts of a deployment:
// which lists to process and how to reach the catalog. Secrets stay in
// the environment.
type File struct {
	// Lists are the bestseller list names to process, in order.
	Lists []string `yaml:"lists,omitempty"`

	// Catalog describes the target catalog.
	Catalog CatalogConfig `yaml:"catalog,omitempty"`

	// Email describes the notification channel.
	Email EmailConfig `yaml:"email,omitempty"`

	// OutputDir overrides the artifact export directory.
	OutputDir string `yaml:"outputDir,omitempty"`
}

// CatalogConfig holds catalog connection settings.
type CatalogConfig struct {
	// BaseURL is the catalog root URL.
	BaseURL string `yaml:"baseURL,omitempty"`

	// Marker overrides the record-key marker (default SD_ILS).
	Marker string `yaml:"marker,omitempty"`

	// PageTimeout overrides the navigation timeout.
	PageTimeout time.Duration `yaml:"pageTimeout,omitempty"`
}

// EmailConfig holds notification settings. The sender password is never
// read from the file; it comes from the environment only.
type EmailConfig struct {
	// SMTPHost and SMTPPort locate the mail submission endpoint.
	SMTPHost string `yaml:"smtpHost,omitempty"`
	SMTPPort int    `yaml:"smtpPort,omitempty"`

	// Sender is the authenticated sender address.
	Sender string `yaml:"sender,omitempty"`

	// Recipients receive the reports.
	Recipients []string `yaml:"recipients,omitempty"`
}

// LoadFile loads a configuration file from path.
// It returns ErrConfigNotFound when the file does not exist so callers
// can distinguish "explicitly requested but missing" from "no file".
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file:
// 1. the explicit path, if given
// 2. .catkey.yaml in the current directory
// 3. .catkey.yaml in the user's home directory
//
// Returns the path if found, or empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// ApplyFile layers file values onto the config. Only set fields override.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	if len(cf.Lists) > 0 {
		c.Lists = cf.Lists
	}
	if cf.Catalog.BaseURL != "" {
		c.CatalogBaseURL = strings.TrimRight(cf.Catalog.BaseURL, "/")
	}
	if cf.Catalog.Marker != "" {
		c.RecordMarker = cf.Catalog.Marker
	}
	if cf.Catalog.PageTimeout > 0 {
		c.PageTimeout = cf.Catalog.PageTimeout
	}
	if cf.Email.SMTPHost != "" {
		c.SMTPHost = cf.Email.SMTPHost
	}
	if cf.Email.SMTPPort > 0 {
		c.SMTPPort = cf.Email.SMTPPort
	}
	if cf.Email.Sender != "" {
		c.Sender = cf.Email.Sender
	}
	if len(cf.Email.Recipients) > 0 {
		c.Recipients = cf.Email.Recipients
	}
	if cf.OutputDir != "" {
		c.OutputDir = cf.OutputDir
	}
}

// ApplyEnv layers environment values onto the config. The variable names
// match the original deployment surface so existing cron and CI setups
// keep working. Only set variables override.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	setStr := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitCommaList(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setSeconds := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = time.Duration(n) * time.Second
			}
		}
	}

	setStr("NYT_API_KEY", &c.APIKey)
	setList("NYT_LIST_NAMES", &c.Lists)
	if v, ok := lookup("CATALOG_BASE_URL"); ok && v != "" {
		c.CatalogBaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	setStr("SENDER_EMAIL", &c.Sender)
	setStr("SENDER_PASSWORD", &c.SenderPassword)
	setList("RECEIVER_EMAILS", &c.Recipients)
	setStr("SMTP_SERVER", &c.SMTPHost)
	setInt("SMTP_PORT", &c.SMTPPort)
	setStr("NYT_OUTPUT_DIR", &c.OutputDir)
	setInt("NYT_MAX_RETRIES", &c.MaxRetries)
	setSeconds("NYT_REQUEST_TIMEOUT", &c.RequestTimeout)
	setSeconds("NYT_PAGE_TIMEOUT", &c.PageTimeout)
	if v, ok := lookup("NYT_NO_EMAIL"); ok {
		c.NoEmail = v == "1" || strings.EqualFold(v, "true")
	}
	setStr("CHROME_BIN", &c.BrowserBin)
}

// splitCommaList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
