package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldsync/internal/validate"
)

type Server struct {
	Addr string `yaml:"addr"`
}

type Client struct {
	URL string `yaml:"url"`
	// Relays, when set, replaces URL with several relays; each document is
	// routed to one of them and fails over to the rest.
	Relays []string `yaml:"relays,omitempty"`
	Doc    string   `yaml:"doc"`
	Site   string   `yaml:"site,omitempty"`
	// LineEnding is "lf" or "crlf", the convention the local field stores.
	LineEnding string `yaml:"lineEnding"`
	// History is how many mirror revisions to keep.
	History int `yaml:"history"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type Config struct {
	Server Server `yaml:"server"`
	Client Client `yaml:"client"`
	Log    Log    `yaml:"log"`
}

var Default = Config{
	Server: Server{Addr: ":8080"},
	Client: Client{URL: "ws://localhost:8080/ws", Doc: "scratch", LineEnding: "lf", History: 100},
	Log:    Log{Level: "info"},
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path means $FIELDSYNC_CONFIG or
// fieldsync.yaml; a missing file is not an error.
func Load(path string) (Config, error) {
	conf := Default
	explicit := path != ""
	if !explicit {
		path = "fieldsync.yaml"
		if p := os.Getenv("FIELDSYNC_CONFIG"); p != "" {
			path, explicit = p, true
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &conf); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if p := os.Getenv("PORT"); p != "" {
		conf.Server.Addr = ":" + p
	}
	if v := os.Getenv("FIELDSYNC_URL"); v != "" {
		conf.Client.URL = v
	}
	if v := os.Getenv("FIELDSYNC_DOC"); v != "" {
		conf.Client.Doc = v
	}
	if v := os.Getenv("FIELDSYNC_SITE"); v != "" {
		conf.Client.Site = v
	}
	if v := os.Getenv("FIELDSYNC_LOG_LEVEL"); v != "" {
		conf.Log.Level = v
	}

	return conf, conf.Validate()
}

func (c Config) Validate() error {
	if err := validate.DocID(c.Client.Doc); err != nil {
		return fmt.Errorf("client.doc: %w", err)
	}
	if c.Client.Site != "" {
		if err := validate.SiteID(c.Client.Site); err != nil {
			return fmt.Errorf("client.site: %w", err)
		}
	}
	switch strings.ToLower(c.Client.LineEnding) {
	case "", "lf", "crlf":
	default:
		return fmt.Errorf("client.lineEnding: unknown convention %q", c.Client.LineEnding)
	}
	return nil
}

// Endpoints returns the relay URLs to try.
func (c Client) Endpoints() []string {
	if len(c.Relays) > 0 {
		return c.Relays
	}
	return []string{c.URL}
}

// CRLF reports whether the client field stores "\r\n" line breaks.
func (c Client) CRLF() bool {
	return strings.EqualFold(c.LineEnding, "crlf")
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
