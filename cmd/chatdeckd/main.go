package main

import (
	"flag"

	"github.com/chatdeck/chatdeck/internal/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.chatdeck/config.toml)")
	flag.Parse()

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	app := fx.New(
		daemon.Module(daemon.Params{ConfigPath: *configFlag}),
	)

	app.Run()
}
