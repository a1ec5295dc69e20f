package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string // postgres (lib/pq), pgx or sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite file
	}

	GradingConfig struct {
		PassMark               float64
		MinCPMK                int
		MaxCPMK                int
		EnforceTemplateWeights bool // gate RPS submission on valid template weights
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		FrontendBaseURL  string
		defaultFromEmail string
		RollbarToken     string
		SendgridApiKey   string
		Database         DatabaseConfig
		Grading          GradingConfig
	}
)

func (db DatabaseConfig) Address() string {
	if db.Port == "" {
		return db.Host
	}
	return net.JoinHostPort(db.Host, db.Port)
}

func (db DatabaseConfig) IsSQLite() bool {
	return db.Engine == "sqlite"
}

func (conf *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(conf.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// NewConfig reads the configuration from the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Kurikulum")
	v.SetDefault("build", "develop")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("testMode", false)
	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "kurikulum")
	v.SetDefault("database_user", "kurikulum")
	v.SetDefault("database_password", "")
	v.SetDefault("database_adminUser", "")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)
	v.SetDefault("database_path", "kurikulum.db")
	v.SetDefault("grading_passMark", 60.0)
	v.SetDefault("grading_minCPMK", 3)
	v.SetDefault("grading_maxCPMK", 12)
	v.SetDefault("grading_enforceTemplateWeights", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database_engine")),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
			Path:          v.GetString("database_path"),
		},
		Grading: GradingConfig{
			PassMark:               v.GetFloat64("grading_passMark"),
			MinCPMK:                v.GetInt("grading_minCPMK"),
			MaxCPMK:                v.GetInt("grading_maxCPMK"),
			EnforceTemplateWeights: v.GetBool("grading_enforceTemplateWeights"),
		},
	}
}

// NewTestConfig returns a config suitable for tests: sqlite engine, test mode, no remote services.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Kurikulum",
		Env:              "TEST",
		Build:            "test",
		Debug:            true,
		TestMode:         true,
		FrontendBaseURL:  "http://localhost:8080",
		defaultFromEmail: "Kurikulum <noreply@localhost>",
		Database:         DatabaseConfig{Engine: "sqlite"},
		Grading: GradingConfig{
			PassMark:               60,
			MinCPMK:                3,
			MaxCPMK:                12,
			EnforceTemplateWeights: true,
		},
	}
}
