package domain

import (
	"fmt"
	"os"
)

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// Valid reports whether d is a supported driver.
func (d DatabaseDriver) Valid() bool {
	switch d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB, DatabaseDriverSQLite:
		return true
	}
	return false
}

// DatabaseConnection holds the metadata for connecting to an external database.
// Passwords never live in config files; PasswordEnv names the variable holding it.
type DatabaseConnection struct {
	Driver      DatabaseDriver    `yaml:"driver" json:"driver"`
	Host        string            `yaml:"host" json:"host"`         // hostname, mongodb URI, or file path (sqlite)
	Port        int               `yaml:"port" json:"port"`         // 0 for the driver default
	Database    string            `yaml:"database" json:"database"` // db name or empty for sqlite
	Username    string            `yaml:"username" json:"username"`
	PasswordEnv string            `yaml:"password_env" json:"passwordEnv"`
	SSLMode     string            `yaml:"ssl_mode" json:"sslMode"`
	Options     map[string]string `yaml:"options" json:"options,omitempty"` // driver-specific URI params
}

// Password resolves the connection password from the environment.
func (c *DatabaseConnection) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// Validate checks the fields every driver needs.
func (c *DatabaseConnection) Validate() error {
	if !c.Driver.Valid() {
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}
	if c.Host == "" {
		return fmt.Errorf("%s: host is required", c.Driver)
	}
	return nil
}
