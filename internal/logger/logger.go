package logger

import (
	"go.uber.org/zap"
)

// New builds a JSON production logger for env "production" and a
// human-readable development logger otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
