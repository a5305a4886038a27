package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/modforge/container/internal/config"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/server"
	"go.uber.org/zap"
)

func main() {
	port := flag.String("port", "", "management API port (overrides PORT)")
	boxd := flag.String("boxd", "", "box daemon address (overrides BOXD_ADDR)")
	watch := flag.String("watch", "", "hot-deploy directory (enables the watcher)")
	flag.Parse()

	conf, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		conf.Server.Port = *port
	}
	if *boxd != "" {
		conf.Boxd.Address = *boxd
	}
	if *watch != "" {
		conf.Watcher.Enabled = true
		conf.Watcher.Dir = *watch
	}

	log, err := logging.New(logging.Config{
		Level:       conf.Logging.Level,
		Development: conf.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		os.Exit(1)
	}

	log.Info("module container starting",
		zap.String("port", conf.Server.Port),
		zap.String("boxd", conf.Boxd.Address),
		zap.Bool("watch", conf.Watcher.Enabled))

	if err := server.New(conf, log).Run(); err != nil {
		log.Error("container exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("container stopped")
}
