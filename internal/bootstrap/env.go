package bootstrap

import (
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Loadenv loads .env files into the process environment. Missing files are not an error.
func Loadenv(logger *zap.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}
}
