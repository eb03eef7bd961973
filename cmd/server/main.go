package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/Tyrowin/jointrelay/internal/discovery"
	"github.com/Tyrowin/jointrelay/internal/logging"
	"github.com/Tyrowin/jointrelay/internal/server"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	ConfigFile string `short:"c" long:"config" description:"Path to a YAML configuration file"`
	LogFile    string `long:"log-file" description:"Also write logs to this file, rotated by size"`
	MDNS       bool   `long:"mdns" description:"Advertise the relay on the local network via mDNS"`

	Args struct {
		Port string `positional-arg-name:"port" description:"Port to listen on (default 8080)"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [port]"
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logCloser := logging.Setup("[relay] ", cfg.LogFile)
	defer func() { _ = logCloser.Close() }()

	if err := run(cfg); err != nil {
		log.Printf("Relay server failed: %v", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and finally
// command-line flags.
func loadConfig(opts options) (*server.Config, error) {
	cfg := server.NewConfig()
	if opts.ConfigFile != "" {
		if err := server.LoadConfigFile(cfg, opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	server.ApplyEnv(cfg)

	if opts.Args.Port != "" {
		cfg.Port = opts.Args.Port
	}
	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}
	if opts.MDNS {
		cfg.MDNS = true
	}

	sanitized := cfg.Sanitize()
	if sanitized.PortNumber() == 0 {
		return nil, fmt.Errorf("invalid port %q", cfg.Port)
	}
	return &sanitized, nil
}

func run(cfg *server.Config) error {
	log.Println("Starting robot relay server...")

	relay := server.NewRelay(cfg)
	relay.Start()

	httpServer := server.CreateServer(cfg.Port, relay.Routes())

	serveErr := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var advert *discovery.Advertisement
	if cfg.MDNS {
		var err error
		advert, err = discovery.Advertise(cfg.PortNumber())
		if err != nil {
			log.Printf("mDNS advertisement disabled: %v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Printf("Received %s, shutting down...", sig)
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}

	advert.Shutdown()
	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("Forcing HTTP server close: %v", err)
		_ = httpServer.Close()
	}
	if err := relay.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	log.Println("Relay server stopped")
	return runErr
}
