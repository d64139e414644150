package main

import (
	"context"
	"log"

	"github.com/carelink-app/carelink/internal/server"
	"github.com/carelink-app/carelink/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
