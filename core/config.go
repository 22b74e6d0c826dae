package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	databaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	escalationConfig struct {
		Interval time.Duration
		Window   time.Duration
	}

	storageConfig struct {
		Backend        string // local | supabase
		LocalDir       string
		BaseURL        string
		SupabaseURL    string
		SupabaseKey    string
		SupabaseBucket string
	}

	Config struct {
		Debug                bool
		TestMode             bool
		Env                  string
		Build                string
		AppName              string
		SecretKey            string
		WorkDir              string
		FrontendBaseURL      string
		CertificateThreshold int
		Server               serverConfig
		Database             databaseConfig
		Escalation           escalationConfig
		Storage              storageConfig
		RollbarToken         string
		SendgridApiKey       string
		defaultFromEmail     string
	}
)

func (c databaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig loads the configuration for the current environment.
// ENV picks the environment: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "CampusMentor")
	v.SetDefault("secretKey", "cm-dev-n8#v2q!r7zx&a0m4k@w9t$e1y5u6i")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "CampusMentor <noreply@localhost>")
	v.SetDefault("certificateThreshold", 100)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":5000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseName", "campusmentor")
	v.SetDefault("databaseUser", "campusmentor")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("escalationInterval", time.Hour)
	v.SetDefault("escalationWindow", 48*time.Hour)

	v.SetDefault("storageBackend", "local")
	v.SetDefault("storageLocalDir", "uploads")
	v.SetDefault("storageBaseURL", "/uploads")
	v.SetDefault("supabaseURL", "")
	v.SetDefault("supabaseKey", "")
	v.SetDefault("supabaseBucket", "uploads")

	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.Getwd: %v", err)
	}

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

	conf := &Config{
		Debug:                v.GetBool("debug"),
		TestMode:             v.GetBool("testMode"),
		Env:                  env,
		Build:                v.GetString("build"),
		AppName:              v.GetString("appName"),
		SecretKey:            v.GetString("secretKey"),
		WorkDir:              wd,
		FrontendBaseURL:      v.GetString("frontendBaseURL"),
		CertificateThreshold: v.GetInt("certificateThreshold"),
		Server: serverConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Escalation: escalationConfig{
			Interval: v.GetDuration("escalationInterval"),
			Window:   v.GetDuration("escalationWindow"),
		},
		Storage: storageConfig{
			Backend:        v.GetString("storageBackend"),
			LocalDir:       v.GetString("storageLocalDir"),
			BaseURL:        v.GetString("storageBaseURL"),
			SupabaseURL:    v.GetString("supabaseURL"),
			SupabaseKey:    v.GetString("supabaseKey"),
			SupabaseBucket: v.GetString("supabaseBucket"),
		},
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
	if conf.Server.Host == "" {
		conf.Server.Host, _ = os.Hostname()
	}
	return conf
}

// NewTestConfig returns the configuration used by tests.
func NewTestConfig() *Config {
	return &Config{
		Debug:                true,
		TestMode:             true,
		Env:                  "TEST",
		Build:                "test",
		AppName:              "CampusMentor",
		SecretKey:            "test-secret",
		CertificateThreshold: 100,
		Server: serverConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Database:         databaseConfig{Engine: "sqlite"},
		Escalation:       escalationConfig{Interval: time.Hour, Window: 48 * time.Hour},
		Storage:          storageConfig{Backend: "local", BaseURL: "/uploads"},
		defaultFromEmail: fmt.Sprintf("%s <noreply@localhost>", "CampusMentor"),
	}
}
