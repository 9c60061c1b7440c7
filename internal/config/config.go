package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPServer struct {
		Port           int `koanf:"port"`
		MaxHeaderBytes int `koanf:"maxHeaderBytes"`
		Timeout        struct {
			Read       time.Duration `koanf:"read"`
			Write      time.Duration `koanf:"write"`
			Idle       time.Duration `koanf:"idle"`
			ReadHeader time.Duration `koanf:"readHeader"`
		} `koanf:"timeout"`
	} `koanf:"server"`

	Store struct {
		Driver string `koanf:"driver"`
	} `koanf:"store"`

	Mongo struct {
		URI        string        `koanf:"uri"`
		Database   string        `koanf:"database"`
		Collection string        `koanf:"collection"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"mongo"`

	Postgres struct {
		URL     string        `koanf:"url"`
		Table   string        `koanf:"table"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"postgres"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Shutdown struct {
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"shutdown"`
}

func (c Config) String() string {
	return fmt.Sprintf("server.port=%d, server.maxHeaderBytes=%d, server.timeout.read=%v, server.timeout.write=%v, server.timeout.idle=%v, server.timeout.readHeader=%v, store.driver=%s, mongo.uri=%s, mongo.database=%s, mongo.collection=%s, postgres.url=%s, postgres.table=%s, log.level=%s, shutdown.timeout=%v.",
		c.HTTPServer.Port,
		c.HTTPServer.MaxHeaderBytes,
		c.HTTPServer.Timeout.Read,
		c.HTTPServer.Timeout.Write,
		c.HTTPServer.Timeout.Idle,
		c.HTTPServer.Timeout.ReadHeader,
		c.Store.Driver,
		maskURL(c.Mongo.URI),
		c.Mongo.Database,
		c.Mongo.Collection,
		maskURL(c.Postgres.URL),
		c.Postgres.Table,
		c.Log.Level,
		c.Shutdown.Timeout)
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	// Mask the credentials, keep the host part
	if i := strings.LastIndex(url, "@"); i >= 0 {
		scheme := ""
		if j := strings.Index(url, "://"); j >= 0 && j < i {
			scheme = url[:j+3]
		}
		return scheme + "****@" + url[i+1:]
	}
	return url
}

const (
	defaultMongoDatabase = "libraryDB"

	envPrefix      = "library_"
	defaultEnvFile = ".env"
	configFile     = "config.yaml"
)

// aliases maps conventional variable names onto config keys. Prefixed variables override them.
var aliases = map[string]string{
	"mongodb_uri":  "mongo.uri",
	"database_url": "postgres.url",
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":               8080,
		"server.maxHeaderBytes":     1 << 20,
		"server.timeout.read":       5 * time.Second,
		"server.timeout.write":      10 * time.Second,
		"server.timeout.idle":       60 * time.Second,
		"server.timeout.readHeader": 2 * time.Second,
		"store.driver":              DriverMongo,
		"mongo.uri":                 "mongodb://localhost:27017",
		"mongo.collection":          "books",
		"mongo.timeout":             10 * time.Second,
		"postgres.table":            "books",
		"postgres.timeout":          10 * time.Second,
		"log.level":                 "info",
		"shutdown.timeout":          10 * time.Second,
	}
}

// Load reads the configuration from defaults, a yaml file, a .env file and environment variables
func Load() (*Config, error) {
	return load(configFile, defaultEnvFile)
}

func load(yamlFile, envFile string) (*Config, error) {
	// Create a new Koanf instance
	var k = koanf.New(".")

	// 1. Built-in defaults, the lowest priority
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// 2. Load configuration from yaml file
	if err := k.Load(file.Provider(yamlFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config: %v", err)
		}
	}

	// 3. Load environment variables from .env file
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		for _, transform := range []func(string) string{aliasTransformer, keyTransformer} {
			envMap := make(map[string]any)
			for key, value := range envFileMap {
				if name := transform(key); name != "" {
					envMap[name] = value
				}
			}
			if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
				log.Printf("WARN: error loading .env config: %v", err)
			}
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 4. Load environment variables from the system, the highest priority
	for _, transform := range []func(string) string{aliasTransformer, keyTransformer} {
		if err := k.Load(env.Provider("", ".", transform), nil); err != nil {
			log.Printf("WARN: error loading env vars: %v", err)
		}
	}

	var cfg Config
	// 5. Unmarshal the configuration into the Config struct
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// 6. Fall back to the database named in the mongo URI
	if err := resolveMongoDatabase(&cfg); err != nil {
		return nil, err
	}

	// 7. Validate the configuration
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveMongoDatabase fills mongo.database when no source set it explicitly:
// the database in the URI path first, then libraryDB.
func resolveMongoDatabase(cfg *Config) error {
	if cfg.Mongo.Database != "" {
		return nil
	}
	cfg.Mongo.Database = defaultMongoDatabase
	if cfg.Store.Driver != DriverMongo || !isValidMongoURL(cfg.Mongo.URI) {
		return nil
	}
	cs, err := connstring.ParseAndValidate(cfg.Mongo.URI)
	if err != nil {
		return fmt.Errorf("invalid mongo URI %s: %w", maskURL(cfg.Mongo.URI), err)
	}
	if cs.Database != "" {
		cfg.Mongo.Database = cs.Database
	}
	return nil
}

// validateConfig checks if the configuration values are valid
func validateConfig(cfg Config) error {
	if cfg.HTTPServer.Port <= 0 || cfg.HTTPServer.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", cfg.HTTPServer.Port)
	}
	if cfg.HTTPServer.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", cfg.HTTPServer.Timeout.Read)
	}
	if cfg.HTTPServer.Timeout.Write <= 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", cfg.HTTPServer.Timeout.Write)
	}
	if cfg.HTTPServer.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", cfg.HTTPServer.Timeout.Idle)
	}
	if cfg.Shutdown.Timeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.Shutdown.Timeout)
	}

	switch cfg.Store.Driver {
	case DriverMongo:
		if cfg.Mongo.URI == "" {
			return fmt.Errorf("mongo URI is not configured")
		}
		if !isValidMongoURL(cfg.Mongo.URI) {
			return fmt.Errorf("mongo URI must start with 'mongodb://' or 'mongodb+srv://': %s", maskURL(cfg.Mongo.URI))
		}
		if cfg.Mongo.Database == "" || cfg.Mongo.Collection == "" {
			return fmt.Errorf("mongo database and collection must be configured")
		}
	case DriverPostgres:
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("postgres URL is not configured")
		}
		if !isValidPostgresURL(cfg.Postgres.URL) {
			return fmt.Errorf("postgres URL must start with 'postgres://': %s", maskURL(cfg.Postgres.URL))
		}
		if cfg.Postgres.Table == "" {
			return fmt.Errorf("postgres table is not configured")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q, expected one of %s, %s, %s",
			cfg.Store.Driver, DriverMongo, DriverPostgres, DriverMemory)
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

func isValidMongoURL(url string) bool {
	return strings.HasPrefix(url, "mongodb://") ||
		strings.HasPrefix(url, "mongodb+srv://")
}

// knownKeys maps lower-cased config keys to their canonical spelling.
var knownKeys = func() map[string]string {
	keys := make(map[string]string)
	for key := range defaults() {
		keys[strings.ToLower(key)] = key
	}
	keys["postgres.url"] = "postgres.url"
	keys["mongo.database"] = "mongo.database"
	return keys
}()

// keyTransformer transforms prefixed environment variable keys to config keys; other keys are skipped
func keyTransformer(key string) string {
	key = strings.ToLower(key)
	if !strings.HasPrefix(key, envPrefix) {
		return ""
	}
	key = strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "_", ".")
	if canonical, ok := knownKeys[key]; ok {
		return canonical
	}
	return key
}

// aliasTransformer keeps only the variables listed in aliases
func aliasTransformer(key string) string {
	return aliases[strings.ToLower(key)]
}
