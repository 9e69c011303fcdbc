package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Mongo    MongoConfig
		Email    EmailConfig
		Media    MediaConfig
		Outbox   OutboxConfig
		Meeting  MeetingConfig

		PasswordResetTimeoutDelta time.Duration
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	MongoConfig struct {
		Enabled bool
		URI     string
		Name    string
		Timeout time.Duration
	}

	EmailConfig struct {
		DefaultFromName    string
		DefaultFromAddress string
		SendgridAPIKey     string
	}

	MediaConfig struct {
		Root          string
		URLPrefix     string
		MaxImageSize  int64
		MaxDocSize    int64
		MaxImageWidth int
	}

	OutboxConfig struct {
		Schedule    string
		BatchSize   int
		MaxAttempts int
		BaseBackoff time.Duration
	}

	MeetingConfig struct {
		BaseURL  string
		Timezone string
	}
)

// Address returns the API listen address.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Address returns the database host:port.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Email.DefaultFromName, Address: c.Email.DefaultFromAddress}
}

// NewConfig loads the configuration from defaults, the environment, and
// `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Mwalimu")
	v.SetDefault("secretKey", "q8w-3v!tz7@uo(2m1jd^r0$e%k9#y&h4b+x5c_p6n*l=g")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mwalimu")
	v.SetDefault("database.user", "mwalimu")
	v.SetDefault("database.password", "mwalimu")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("mongo.enabled", false)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.name", "mwalimu")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("email.defaultFromName", "Mwalimu")
	v.SetDefault("email.defaultFromAddress", "noreply@localhost")
	v.SetDefault("email.sendgridAPIKey", "")

	v.SetDefault("media.root", "media")
	v.SetDefault("media.urlPrefix", "/media")
	v.SetDefault("media.maxImageSize", 2<<20)
	v.SetDefault("media.maxDocSize", 10<<20)
	v.SetDefault("media.maxImageWidth", 1024)

	v.SetDefault("outbox.schedule", "@every 2s")
	v.SetDefault("outbox.batchSize", 50)
	v.SetDefault("outbox.maxAttempts", 8)
	v.SetDefault("outbox.baseBackoff", 5*time.Second)

	v.SetDefault("meeting.baseURL", "https://meet.jit.si")
	v.SetDefault("meeting.timezone", "UTC")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
		v.SetDefault("server.disableReqLogs", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		WorkDir:         workDir,
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Mongo: MongoConfig{
			Enabled: v.GetBool("mongo.enabled"),
			URI:     v.GetString("mongo.uri"),
			Name:    v.GetString("mongo.name"),
			Timeout: v.GetDuration("mongo.timeout"),
		},
		Email: EmailConfig{
			DefaultFromName:    v.GetString("email.defaultFromName"),
			DefaultFromAddress: v.GetString("email.defaultFromAddress"),
			SendgridAPIKey:     v.GetString("email.sendgridAPIKey"),
		},
		Media: MediaConfig{
			Root:          v.GetString("media.root"),
			URLPrefix:     v.GetString("media.urlPrefix"),
			MaxImageSize:  v.GetInt64("media.maxImageSize"),
			MaxDocSize:    v.GetInt64("media.maxDocSize"),
			MaxImageWidth: v.GetInt("media.maxImageWidth"),
		},
		Outbox: OutboxConfig{
			Schedule:    v.GetString("outbox.schedule"),
			BatchSize:   v.GetInt("outbox.batchSize"),
			MaxAttempts: v.GetInt("outbox.maxAttempts"),
			BaseBackoff: v.GetDuration("outbox.baseBackoff"),
		},
		Meeting: MeetingConfig{
			BaseURL:  v.GetString("meeting.baseURL"),
			Timezone: v.GetString("meeting.timezone"),
		},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
	if !filepath.IsAbs(conf.Media.Root) {
		conf.Media.Root = filepath.Join(workDir, conf.Media.Root)
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: in-memory storage, no outside services.
func NewTestConfig() *Config {
	return &Config{
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		AppName:         "Mwalimu",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		WorkDir:         os.TempDir(),
		Server: ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			DisableReqLogs:            true,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Email: EmailConfig{
			DefaultFromName:    "Mwalimu",
			DefaultFromAddress: "noreply@localhost",
		},
		Media: MediaConfig{
			Root:          filepath.Join(os.TempDir(), fmt.Sprintf("mwalimu-media-%d", os.Getpid())),
			URLPrefix:     "/media",
			MaxImageSize:  2 << 20,
			MaxDocSize:    10 << 20,
			MaxImageWidth: 1024,
		},
		Outbox: OutboxConfig{
			Schedule:    "@every 1s",
			BatchSize:   50,
			MaxAttempts: 3,
			BaseBackoff: time.Second,
		},
		Meeting: MeetingConfig{
			BaseURL:  "https://meet.jit.si",
			Timezone: "UTC",
		},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
}
