package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/christopherklint97/citabot/internal/booking"
)

type Config struct {
	Business      BusinessConfig `toml:"business"`
	Booking       BookingConfig  `toml:"booking"`
	Calendar      CalendarConfig `toml:"calendar"`
	Store         StoreConfig    `toml:"store"`
	Notifications NotifyConfig   `toml:"notifications"`
	Log           LogConfig      `toml:"log"`
}

type BusinessConfig struct {
	Name      string `toml:"name"`
	TimeZone  string `toml:"time_zone"`
	StartHour int    `toml:"start_hour"`
	EndHour   int    `toml:"end_hour"`
}

type BookingConfig struct {
	AppointmentMinutes   int      `toml:"appointment_minutes"`
	MinimumNoticeMinutes int      `toml:"minimum_notice_minutes"`
	LookaheadDays        int      `toml:"lookahead_days"`
	MaxSlots             int      `toml:"max_slots"`
	StartKeywords        []string `toml:"start_keywords"`
	RetryIntervalMinutes int      `toml:"retry_interval_minutes"`
}

type CalendarConfig struct {
	Provider string       `toml:"provider"` // "google" | "graph" | "ics" | ""
	Source   string       `toml:"source"`   // ICS URL or file path
	Google   GoogleConfig `toml:"google"`
	Graph    GraphConfig  `toml:"graph"`
}

type GoogleConfig struct {
	CredentialsPath   string  `toml:"credentials_path"`
	TokenPath         string  `toml:"token_path"`
	CalendarID        string  `toml:"calendar_id"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type GraphConfig struct {
	ClientID string `toml:"client_id"`
	TenantID string `toml:"tenant_id"`
}

type StoreConfig struct {
	Driver          string `toml:"driver"` // "sqlite" | "redis" | "memory"
	Path            string `toml:"path"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	SessionTTLHours int    `toml:"session_ttl_hours"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
	File        string `toml:"file"`
}

func DefaultConfig() Config {
	s := booking.DefaultSettings()
	return Config{
		Business: BusinessConfig{
			Name:      s.OrganizationName,
			TimeZone:  s.TimeZone,
			StartHour: s.StartHour,
			EndHour:   s.EndHour,
		},
		Booking: BookingConfig{
			AppointmentMinutes:   s.AppointmentMinutes,
			MinimumNoticeMinutes: int(s.MinimumNotice / time.Minute),
			LookaheadDays:        s.LookaheadDays,
			MaxSlots:             s.MaxSlots,
			StartKeywords:        s.StartKeywords,
			RetryIntervalMinutes: 15,
		},
		Calendar: CalendarConfig{
			Google: GoogleConfig{
				CalendarID:        "primary",
				RequestsPerSecond: 5,
			},
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			SessionTTLHours: 24,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "finding home directory")
	}
	return filepath.Join(home, ".config", "citabot"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults. Environment variables override
// the file.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrap(err, "reading config file")
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config file")
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DEFAULT_TIMEZONE"); v != "" {
		cfg.Business.TimeZone = v
	}
	for env, dst := range map[string]*int{
		"DEFAULT_APPOINTMENT_DURATION_MINUTES": &cfg.Booking.AppointmentMinutes,
		"MINIMUM_NOTICE_MINUTES":               &cfg.Booking.MinimumNoticeMinutes,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", env)
		}
		*dst = n
	}
	if v := os.Getenv("GOOGLE_CALENDAR_CREDENTIALS"); v != "" {
		cfg.Calendar.Google.CredentialsPath = v
	}
	if v := os.Getenv("GOOGLE_CALENDAR_TOKEN"); v != "" {
		cfg.Calendar.Google.TokenPath = v
	}
	if v := os.Getenv("GOOGLE_CALENDAR_ID"); v != "" {
		cfg.Calendar.Google.CalendarID = v
	}
	if v := os.Getenv("MSGRAPH_CLIENT_ID"); v != "" {
		cfg.Calendar.Graph.ClientID = v
	}
	if v := os.Getenv("MSGRAPH_TENANT_ID"); v != "" {
		cfg.Calendar.Graph.TenantID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv("CITABOT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// resolvePaths fills file locations left empty with paths under the config
// directory.
func (c *Config) resolvePaths() error {
	if c.Store.Path != "" && c.Calendar.Google.TokenPath != "" && c.Calendar.Google.CredentialsPath != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(dir, "citabot.db")
	}
	if c.Calendar.Google.CredentialsPath == "" {
		c.Calendar.Google.CredentialsPath = filepath.Join(dir, "google_credentials.json")
	}
	if c.Calendar.Google.TokenPath == "" {
		c.Calendar.Google.TokenPath = filepath.Join(dir, "google_token.json")
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	switch c.Calendar.Provider {
	case "", "google":
	case "graph":
		if c.Calendar.Graph.ClientID == "" {
			return errors.New("calendar.graph.client_id is required for the graph provider")
		}
	case "ics":
		if c.Calendar.Source == "" {
			return errors.New("calendar.source is required for the ics provider")
		}
	default:
		return errors.Errorf("unknown calendar provider %q", c.Calendar.Provider)
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis driver")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Settings maps the file onto the booking rules.
func (c *Config) Settings() booking.Settings {
	s := booking.DefaultSettings()
	s.OrganizationName = c.Business.Name
	s.TimeZone = c.Business.TimeZone
	s.StartHour = c.Business.StartHour
	s.EndHour = c.Business.EndHour
	s.AppointmentMinutes = c.Booking.AppointmentMinutes
	s.MinimumNotice = time.Duration(c.Booking.MinimumNoticeMinutes) * time.Minute
	s.LookaheadDays = c.Booking.LookaheadDays
	s.MaxSlots = c.Booking.MaxSlots
	if len(c.Booking.StartKeywords) > 0 {
		s.StartKeywords = c.Booking.StartKeywords
	}
	return s
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Store.SessionTTLHours) * time.Hour
}

func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Booking.RetryIntervalMinutes) * time.Minute
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file already
// exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	return errors.Wrap(os.WriteFile(path, out, 0644), "writing default config")
}
