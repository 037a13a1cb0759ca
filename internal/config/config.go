package config

type Config struct {
	Database DatabaseConfig
	Report   ReportConfig
	Server   ServerConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	// Path is resolved relative to the working directory.
	Path string
}

type ReportConfig struct {
	Profile      string
	TopTypes     int
	RecentLimit  int
	PreviewBytes int
}

type ServerConfig struct {
	Port     int
	MaxConns int
	// Token enables bearer auth on the HTTP server when non-empty. Only read
	// from the environment.
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "karl_database.db",
		},
		Report: ReportConfig{
			Profile:      "types",
			TopTypes:     10,
			RecentLimit:  5,
			PreviewBytes: 32,
		},
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 16,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/dbcheck/config.yaml (falling back to ~/.config) and then
// applies DBCHECK_* environment variable overrides.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

// loadFromPath is Load with an explicit config file location.
func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
