package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// DefaultPort and DefaultSSLMode apply to environments that omit them.
const (
	DefaultPort    = 5432
	DefaultSSLMode = "require"
)

var (
	// ErrUnknownEnvironment is returned when a named environment is not configured.
	ErrUnknownEnvironment = errors.New("unknown environment")
	// ErrInvalidEnvironment is returned for a malformed environments entry.
	ErrInvalidEnvironment = errors.New("invalid environment")
)

// Environment is one deployment target an operator can pick.
type Environment struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	SSLMode  string `yaml:"sslmode"`
	// Color is one of green, yellow, red, blue, cyan or magenta.
	Color string `yaml:"color"`
	// Confirm requires the operator to type the environment name before connecting.
	Confirm bool `yaml:"confirm"`
}

// Label returns the title if set, else the name.
func (e Environment) Label() string {
	if e.Title != "" {
		return e.Title
	}

	return e.Name
}

// URL builds a PostgreSQL connection URL for the environment.
func (e Environment) URL(password string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:   "/" + e.Database,
	}

	if e.User != "" {
		if password != "" {
			u.User = url.UserPassword(e.User, password)
		} else {
			u.User = url.User(e.User)
		}
	}

	q := url.Values{}
	q.Set("sslmode", e.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

// Environment returns the configured environment called name.
func (c *Config) Environment(name string) (Environment, error) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, nil
		}
	}

	return Environment{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
}

// normalizeEnvironments validates entries and fills port and sslmode defaults.
func normalizeEnvironments(envs []Environment) ([]Environment, error) {
	seen := make(map[string]struct{}, len(envs))
	out := make([]Environment, 0, len(envs))

	for i, env := range envs {
		if env.Name == "" {
			return nil, fmt.Errorf("%w: environments[%d] has no name", ErrInvalidEnvironment, i)
		}

		if _, dup := seen[env.Name]; dup {
			return nil, fmt.Errorf("%w: environment %q defined twice", ErrInvalidEnvironment, env.Name)
		}

		seen[env.Name] = struct{}{}

		if env.Host == "" {
			return nil, fmt.Errorf("%w: environment %q has no host", ErrInvalidEnvironment, env.Name)
		}

		if env.Port == 0 {
			env.Port = DefaultPort
		}

		if env.SSLMode == "" {
			env.SSLMode = DefaultSSLMode
		}

		out = append(out, env)
	}

	return out, nil
}
