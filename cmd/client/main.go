package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/Tyrowin/jointrelay/internal/joint"
	"github.com/Tyrowin/jointrelay/internal/logging"
	"github.com/Tyrowin/jointrelay/internal/receiver"
)

const dialTimeout = 5 * time.Second

type options struct {
	ConfigFile     string        `short:"c" long:"config" description:"Path to a YAML configuration file"`
	LogFile        string        `long:"log-file" description:"Also write logs to this file, rotated by size"`
	Actuator       string        `short:"a" long:"actuator" choice:"sim" choice:"urscript" description:"Motion backend"`
	RobotAddr      string        `long:"robot-addr" description:"URScript interface address of the arm (host:port)"`
	ReconnectDelay time.Duration `long:"reconnect-delay" description:"Wait between connection attempts"`

	Args struct {
		ServerURL string `positional-arg-name:"server-url" description:"Relay URL, e.g. ws://localhost:8080"`
		Channel   string `positional-arg-name:"channel" description:"Channel to join (default robot-1)"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] <server-url> [channel]"
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	logCloser := logging.Setup("[receptor] ", cfg.LogFile)
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := joint.NewController(
		newActuator(ctx, cfg.Robot),
		joint.WithScale(cfg.Robot.Scale),
		joint.WithMotion(cfg.Robot.Speed, cfg.Robot.Acceleration),
	)
	client := receiver.New(*cfg, receiver.NewWebSocketTransport(), controller)

	err = client.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Receptor stopped: %v", err)
		return
	}
	log.Println("Receptor stopped")
}

// loadConfig layers defaults, the config file, the environment and finally
// command-line flags.
func loadConfig(opts options) (*receiver.Config, error) {
	cfg := receiver.NewConfig()
	if opts.ConfigFile != "" {
		if err := receiver.LoadConfigFile(cfg, opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	receiver.ApplyEnv(cfg)

	if opts.Args.ServerURL != "" {
		cfg.ServerURL = opts.Args.ServerURL
	}
	if opts.Args.Channel != "" {
		cfg.Channel = opts.Args.Channel
	}
	if opts.Actuator != "" {
		cfg.Robot.Actuator = opts.Actuator
	}
	if opts.RobotAddr != "" {
		cfg.Robot.Addr = opts.RobotAddr
	}
	if opts.ReconnectDelay > 0 {
		cfg.ReconnectDelay = opts.ReconnectDelay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newActuator connects the configured motion backend. An unreachable arm
// falls back to simulation so the receptor still joins its channel.
func newActuator(ctx context.Context, robot receiver.RobotConfig) joint.Actuator {
	if robot.Actuator != receiver.ActuatorURScript {
		log.Println("Using simulated robot")
		return joint.NewSimulatedActuator(nil)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	actuator, err := joint.DialURScript(dialCtx, robot.Addr)
	if err != nil {
		log.Printf("Warning: could not connect to robot at %s: %v", robot.Addr, err)
		log.Println("Falling back to simulated robot")
		return joint.NewSimulatedActuator(nil)
	}
	return actuator
}
