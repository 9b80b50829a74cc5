package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/gophadmin/internal/devapi"
	"github.com/dmitrijs2005/gophadmin/internal/devapi/config"
)

func main() {
	cfg := config.LoadConfig()
	app := devapi.NewApp(cfg)

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
