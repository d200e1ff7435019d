// Package logging configures the process-wide logrus logger.
package logging

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup switches logrus to JSON output at the given level. Unknown levels
// fall back to info.
func Setup(level string) log.Level {
	log.SetFormatter(&log.JSONFormatter{
		FieldMap: log.FieldMap{
			log.FieldKeyLevel: "severity",
			log.FieldKeyMsg:   "message",
		},
	})

	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	return lvl
}
