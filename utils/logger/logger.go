package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup 按配置初始化全局 logrus
func Setup(level, format string) {
	log.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, falling back to info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
