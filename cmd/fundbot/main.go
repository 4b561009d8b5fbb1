package main

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/fundbot/core/cmd"
	"github.com/m3rciful/fundbot/internal/bot"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier, db *sqlx.DB) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.NewApp(appCfg, db), nil
		},
	})
	if err != nil {
		log.Fatalf("fundbot: %v", err)
	}
}
