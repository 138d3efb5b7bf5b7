// Package config provides functionality for managing configuration options
// for the application using command-line flags and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the dashboard's listening address (ip:port).
	Addr string

	// DatabaseDSN holds the connection string for the platform's managed
	// Postgres record store.
	DatabaseDSN string

	// AuthURL is the base URL of the platform's auth API.
	AuthURL string

	// StorageURL is the base URL of the platform's object storage API.
	StorageURL string

	// APIKey is the platform API key sent with every auth and storage call.
	APIKey string

	// Bucket is the object storage bucket holding all principals' files.
	Bucket string

	// SignedURLTTL is the lifetime in seconds of signed download links.
	SignedURLTTL int

	// SessionRefresh is how often the session refresh loop wakes up.
	SessionRefresh time.Duration

	// Config is the path to the Config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "record store dsn")
	flag.StringVar(&options.AuthURL, "auth-url", "", "platform auth API base URL")
	flag.StringVar(&options.StorageURL, "storage-url", "", "platform storage API base URL")
	flag.StringVar(&options.Bucket, "bucket", "files", "object storage bucket")
	flag.IntVar(&options.SignedURLTTL, "signed-ttl", 3600, "signed URL lifetime in seconds")
	flag.DurationVar(&options.SessionRefresh, "session-refresh", time.Minute, "session refresh loop interval")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Addr = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if authURL := os.Getenv("PLATFORM_AUTH_URL"); authURL != "" {
		options.AuthURL = authURL
	}
	if storageURL := os.Getenv("PLATFORM_STORAGE_URL"); storageURL != "" {
		options.StorageURL = storageURL
	}
	if apiKey := os.Getenv("PLATFORM_API_KEY"); apiKey != "" {
		options.APIKey = apiKey
	}

	return options
}
