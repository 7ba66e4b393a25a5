package main

import (
	"flag"
	"fmt"
	"os"

	"paper_trader/internal/bootstrap"
)

var version = "dev"

var (
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	modeFlag    = flag.String("mode", "", "Override run mode: fills, mark or both")
	onceFlag    = flag.Bool("once", false, "Run a single cycle and exit (cron mode)")
	versionFlag = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println("paper_trader", version)
		return
	}

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}

	if *modeFlag != "" {
		app.Cfg.App.Mode = *modeFlag
	}

	if err := app.Run(*onceFlag); err != nil {
		app.Logger.Error("exited with error", "error", err.Error())
		os.Exit(1)
	}
}
