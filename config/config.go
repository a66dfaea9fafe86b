package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/kun/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Conf the loaded configuration
var Conf Config

// LogOutput the log file writer
var LogOutput io.WriteCloser

func init() {
	Init()
}

// Init loads the config from .env in the working directory when it
// exists, otherwise from the process environment
func Init() {
	filename, _ := filepath.Abs(filepath.Join(".", ".env"))
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		Conf = Load()
	} else {
		Conf = LoadFrom(filename)
	}

	if Conf.Mode == "development" {
		Development()
	} else {
		Production()
	}
}

// LoadFrom overlays the env file onto the process environment, then
// parses the config
func LoadFrom(envfile string) Config {
	file, err := filepath.Abs(envfile)
	if err != nil {
		cfg := Load()
		ReloadLog()
		return cfg
	}

	godotenv.Overload(file)
	cfg := Load()
	ReloadLog()
	return cfg
}

// Load the config from the process environment
func Load() Config {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		exception.New("Can't read config %s", 500, err.Error()).Throw()
	}

	if cfg.MinTokensLimit < 1 {
		cfg.MinTokensLimit = 1
	}
	if cfg.MaxTokensLimit < cfg.MinTokensLimit {
		cfg.MaxTokensLimit = cfg.MinTokensLimit
	}
	return cfg
}

// Production switches to the production mode
func Production() {
	os.Setenv("RELAY_ENV", "production")
	Conf.Mode = "production"
	log.SetLevel(log.InfoLevel)
	log.SetFormatter(log.TEXT)
	if Conf.LogMode == "JSON" {
		log.SetFormatter(log.JSON)
	}
	gin.SetMode(gin.ReleaseMode)
	ReloadLog()
}

// Development switches to the development mode
func Development() {
	os.Setenv("RELAY_ENV", "development")
	Conf.Mode = "development"
	log.SetLevel(log.TraceLevel)
	log.SetFormatter(log.TEXT)
	if Conf.LogMode == "JSON" {
		log.SetFormatter(log.JSON)
	}
	gin.SetMode(gin.DebugMode)
	ReloadLog()
}

// ReloadLog reopens the log output
func ReloadLog() {
	CloseLog()
	OpenLog()
}

// OpenLog opens the log output. Without RELAY_LOG the log stays on
// stderr and gin keeps its default writer.
func OpenLog() {
	if Conf.Log == "" {
		log.SetOutput(os.Stderr)
		return
	}

	logfile, err := filepath.Abs(Conf.Log)
	if err != nil {
		return
	}

	logpath := filepath.Dir(logfile)
	if _, err := os.Stat(logpath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(logpath, 0755); err != nil {
			log.Error("Can't create log path %s: %s", logpath, err.Error())
			return
		}
	}

	LogOutput = &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    Conf.LogMaxSize, // megabytes
		MaxBackups: Conf.LogMaxBackups,
		MaxAge:     Conf.LogMaxAge, // days
	}

	log.SetOutput(LogOutput)
	gin.DefaultWriter = io.MultiWriter(LogOutput)
}

// CloseLog closes the log output
func CloseLog() {
	if LogOutput != nil {
		err := LogOutput.Close()
		if err != nil {
			log.Error("%s", err.Error())
			return
		}
		LogOutput = nil
	}
}
