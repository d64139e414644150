package main

import (
	"context"
	"log"
	"os"

	"github.com/carelink-app/carelink/internal/client/cli"
	"github.com/carelink-app/carelink/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(context.Background(), commandArgs()); err != nil {
		log.Fatalf("%v", err)
	}

}

// commandArgs strips flag arguments, leaving only the subcommand.
func commandArgs() []string {
	var cmds []string
	args := os.Args[1:]
	known := map[string]bool{"-a": true, "-v": true, "-f": true, "-i": true, "-c": true, "-config": true}
	for i := 0; i < len(args); i++ {
		if known[args[i]] {
			i++
			continue
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			continue
		}
		cmds = append(cmds, args[i])
	}
	return cmds
}
