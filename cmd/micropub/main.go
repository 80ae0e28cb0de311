// Command micropub runs a standalone Micropub server from a YAML
// configuration file. Secrets may come from the environment instead of
// the file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eringen/micropub"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "micropub.yml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("micropub %s\n", version)
		return
	}

	cfg, err := micropub.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.Auth.TokenSecret = micropub.EnvOr("MICROPUB_TOKEN_SECRET", cfg.Auth.TokenSecret)
	cfg.Admin.Password = micropub.EnvOr("MICROPUB_ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.Admin.SessionSecret = micropub.EnvOr("MICROPUB_SESSION_SECRET", cfg.Admin.SessionSecret)

	app := micropub.New(cfg)
	defer app.Close()

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
