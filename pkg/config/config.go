package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

type Options struct {
	ServerURL      string            `yaml:"server_url"`
	DBPath         string            `yaml:"db_path"`
	OwnerID        string            `yaml:"user_id"`
	Cooldown       time.Duration     `yaml:"cooldown"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	SyncSchedule   string            `yaml:"sync_schedule"`
	ProbeInterval  time.Duration     `yaml:"probe_interval"`
	CacheDriver    string            `yaml:"cache_driver"`
	Cache          map[string]string `yaml:"cache"`
	QueueKey       string            `yaml:"queue_key"`
	LogLevel       string            `yaml:"log_level"`
	LogFilePath    string            `yaml:"log_file_path"`
	LogMaxAgeDays  int               `yaml:"log_max_age_days"`

	ConfigPath string `yaml:"-"`
}

func NewConfig() *Options {
	return &Options{
		ServerURL:      "http://localhost:8080",
		DBPath:         DefaultDBPath(),
		Cooldown:       5 * time.Minute,
		RequestTimeout: 15 * time.Second,
		SyncSchedule:   "@every 15m",
		ProbeInterval:  30 * time.Second,
		CacheDriver:    "memory",
		Cache:          map[string]string{},
		LogLevel:       "INFO",
		LogMaxAgeDays:  30,
	}
}

// DefaultDBPath places the queue under ~/locsync, or the working directory
// when there is no home.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "locations.db"
	}
	return filepath.Join(home, "locsync", "locations.db")
}

func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", o.ConfigPath, "path to a YAML config file")
	fs.StringVar(&o.ServerURL, "serverURL", o.ServerURL, "server URL")
	fs.StringVar(&o.DBPath, "dbPath", o.DBPath, "local queue database path")
	fs.StringVar(&o.OwnerID, "user", o.OwnerID, "user id samples are recorded for")
	fs.DurationVar(&o.Cooldown, "cooldown", o.Cooldown, "minimum time between accepted writes")
	fs.DurationVar(&o.RequestTimeout, "requestTimeout", o.RequestTimeout, "timeout of a single remote write")
	fs.StringVar(&o.SyncSchedule, "syncSchedule", o.SyncSchedule, "cron spec of the periodic sync")
	fs.DurationVar(&o.ProbeInterval, "probeInterval", o.ProbeInterval, "connectivity probe interval")
	fs.StringVar(&o.CacheDriver, "cacheDriver", o.CacheDriver, "watermark cache: memory or redis")
	fs.StringVar(&o.QueueKey, "queueKey", o.QueueKey, "key used to seal queued records")
	fs.StringVar(&o.LogLevel, "logLevel", o.LogLevel, "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&o.LogFilePath, "logFile", o.LogFilePath, "rotating log file path")
}

// Resolve layers the configuration: the YAML file from -config first, then
// flags given on the command line, then environment variables.
func (o *Options) Resolve(fs *pflag.FlagSet) error {
	if o.ConfigPath != "" {
		set := map[string]string{}
		fs.Visit(func(f *pflag.Flag) { set[f.Name] = f.Value.String() })

		if err := o.LoadFile(o.ConfigPath); err != nil {
			return err
		}

		for name, value := range set {
			if err := fs.Set(name, value); err != nil {
				return fmt.Errorf("failed to reapply flag %s: %w", name, err)
			}
		}
	}

	o.ApplyEnv()
	return nil
}

func (o *Options) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if o.Cache == nil {
		o.Cache = map[string]string{}
	}
	return nil
}

// ApplyEnv overrides values with environment variables when present.
func (o *Options) ApplyEnv() {
	if v, ok := os.LookupEnv("SERVER_URL"); ok {
		o.ServerURL = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		o.DBPath = v
	}
	if v, ok := os.LookupEnv("USER_ID"); ok {
		o.OwnerID = v
	}
	lookupDuration("COOLDOWN", &o.Cooldown)
	lookupDuration("REQUEST_TIMEOUT", &o.RequestTimeout)
	lookupDuration("PROBE_INTERVAL", &o.ProbeInterval)
	if v, ok := os.LookupEnv("SYNC_SCHEDULE"); ok {
		o.SyncSchedule = v
	}
	if v, ok := os.LookupEnv("CACHE_DRIVER"); ok {
		o.CacheDriver = v
	}
	if v, ok := os.LookupEnv("CACHE_ADDR"); ok {
		if o.Cache == nil {
			o.Cache = map[string]string{}
		}
		o.Cache["addr"] = v
	}
	if v, ok := os.LookupEnv("QUEUE_KEY"); ok {
		o.QueueKey = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		o.LogLevel = v
	}
	if v, ok := os.LookupEnv("LOG_FILE_PATH"); ok {
		o.LogFilePath = v
	}
	if v, ok := os.LookupEnv("LOG_MAX_AGE_DAYS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.LogMaxAgeDays = n
		}
	}
}

func lookupDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func (o *Options) GetLogLevel() logrus.Level {
	switch o.LogLevel {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
