package main

import (
	"fmt"
	"log"
	"os"

	corecmd "github.com/m3rciful/tiffinbot/core/cmd"
	"github.com/m3rciful/tiffinbot/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		Name:              "tiffinbot",
		Args:              os.Args[1:],
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			a, err := app.Bootstrap(cfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatalf("tiffinbot: %v", err)
	}
}
