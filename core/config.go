package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName      string
		Build        string
		Env          string // DEV (local; default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Realtime RealtimeConfig
	}

	ServerConfig struct {
		Host               string
		Port               string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		AllowedOrigins     []string
		DisableReqLogs     bool
	}

	// RealtimeConfig holds the socket.io transport and event loop settings.
	RealtimeConfig struct {
		PingInterval    time.Duration
		PingTimeout     time.Duration
		MaxPayload      int64
		WriteTimeout    time.Duration // per frame; also how long a send queue may stay full
		SendQueueSize   int           // frames
		ActionQueueSize int
	}
)

func (sc ServerConfig) Address() string {
	return net.JoinHostPort(sc.Host, sc.Port)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the environment name, eg. DEV_SERVER_PORT.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "LMS Collab")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "v7l#0m=2x&qk9p!c_4r(e8wz@h3n$6ty^b+j1s*ud5f)ag-o")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "")
	conf.SetDefault("server.port", "5000")
	conf.SetDefault("server.debugHost", "localhost:5050")
	conf.SetDefault("server.readTimeout", 10*time.Second)
	conf.SetDefault("server.writeTimeout", 10*time.Second)
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.allowedOrigins", "*")
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("realtime.pingInterval", 25*time.Second)
	conf.SetDefault("realtime.pingTimeout", 60*time.Second)
	conf.SetDefault("realtime.maxPayload", int64(1e8))
	conf.SetDefault("realtime.writeTimeout", 10*time.Second)
	conf.SetDefault("realtime.sendQueueSize", 256)
	conf.SetDefault("realtime.actionQueueSize", 1024)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("debug", false)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:      conf.GetString("appName"),
		Build:        conf.GetString("build"),
		Env:          env,
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Port:               conf.GetString("server.port"),
			DebugHost:          conf.GetString("server.debugHost"),
			ReadTimeout:        conf.GetDuration("server.readTimeout"),
			WriteTimeout:       conf.GetDuration("server.writeTimeout"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			AllowedOrigins:     splitCSV(conf.GetString("server.allowedOrigins")),
			DisableReqLogs:     conf.GetBool("server.disableReqLogs"),
		},
		Realtime: RealtimeConfig{
			PingInterval:    conf.GetDuration("realtime.pingInterval"),
			PingTimeout:     conf.GetDuration("realtime.pingTimeout"),
			MaxPayload:      conf.GetInt64("realtime.maxPayload"),
			WriteTimeout:    conf.GetDuration("realtime.writeTimeout"),
			SendQueueSize:   conf.GetInt("realtime.sendQueueSize"),
			ActionQueueSize: conf.GetInt("realtime.actionQueueSize"),
		},
	}
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = CleanString(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
