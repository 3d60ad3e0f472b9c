package main

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"StudySync/internal/bootstrap"
	"StudySync/internal/config"
	pkg "StudySync/pkg/routes"
)

func main() {
	boot, _ := zap.NewDevelopment()
	bootstrap.Loadenv(boot)

	settings, err := config.NewSettings()
	if err != nil {
		boot.Error("Invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	app := fx.New(
		pkg.Modules(settings),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)

	app.Run()
}
