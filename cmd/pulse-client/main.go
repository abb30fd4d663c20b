// Command pulse-client is an interactive Pulse client.
//
// The client connects to a Pulse broker, subscribes to topics, and
// publishes messages from an interactive prompt. It keeps its session
// identity and last broker endpoint in a state file so a restarted
// client resumes as the same participant.
//
// Usage:
//
//	pulse-client [flags]
//
// Flags:
//
//	-host string       Broker host to connect to at startup (empty: connect manually)
//	-port int          Broker port (default 7110)
//	-name string       Client name, used as the identity prefix (default "pulse")
//	-session string    Session state file path (default ~/.pulse/session.json)
//	-codec string      Payload codec: json, cbor (default "json")
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Connect to a local broker and enter the prompt
//	pulse-client -host 127.0.0.1
//
//	# Start without connecting, then use 'discover' and 'connect'
//	pulse-client -name sensor
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pulse-mq/pulse-go/pkg/broker"
	"github.com/pulse-mq/pulse-go/pkg/client"
	"github.com/pulse-mq/pulse-go/pkg/identity"
	"github.com/pulse-mq/pulse-go/pkg/log"
	"github.com/pulse-mq/pulse-go/pkg/payload"
	"github.com/pulse-mq/pulse-go/pkg/session"
)

// Config holds the client configuration.
type Config struct {
	Host        string
	Port        int
	Name        string
	SessionFile string
	Codec       string
	LogLevel    string
}

var config Config

func init() {
	flag.StringVar(&config.Host, "host", "", "Broker host to connect to at startup")
	flag.IntVar(&config.Port, "port", broker.DefaultPort, "Broker port")
	flag.StringVar(&config.Name, "name", "", "Client name, used as the identity prefix")
	flag.StringVar(&config.SessionFile, "session", "", "Session state file path")
	flag.StringVar(&config.Codec, "codec", "json", "Payload codec: json, cbor")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	setupLogging(config.LogLevel)

	codec, err := payload.ByName(config.Codec)
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	store := session.NewStore(sessionPath())
	saved, err := store.Load()
	if err != nil {
		stdlog.Printf("Warning: failed to load session state: %v", err)
	}

	clientConfig := client.Config{
		ID:      config.Name,
		Payload: codec,
		Logger:  eventLogger(config.LogLevel),
	}
	// A saved identity makes the restarted client resume as the same
	// participant.
	if saved != nil && saved.Identity != "" {
		clientConfig.Identity = identity.Fixed(saved.Identity)
	}

	c := client.New(clientConfig)
	stdlog.Printf("Session identity: %s", c.Identity())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ui, err := NewInteractive(c, store)
	if err != nil {
		stdlog.Fatalf("Failed to start interactive mode: %v", err)
	}
	// Route log output through readline so it does not clobber the prompt.
	stdlog.SetOutput(ui.Stdout())

	c.OnFatal(func(err error) {
		ui.Printf("Connection failed permanently: %v\n", err)
		ui.Printf("Check the endpoint and use 'connect' to retry.\n")
	})

	if config.Host != "" {
		if err := c.Connect(config.Host, config.Port); err != nil {
			stdlog.Printf("Connect failed: %v", err)
		}
	} else if saved != nil && saved.LastHost != "" {
		stdlog.Printf("Last broker: %s:%d (use 'connect' to reconnect)", saved.LastHost, saved.LastPort)
	}

	// Resubscribe to the topics from the previous session.
	if saved != nil {
		for _, topic := range saved.Topics {
			ui.subscribe(topic)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ui.Run(ctx, cancel)

	if err := ui.saveSession(); err != nil {
		stdlog.Printf("Warning: failed to save session state: %v", err)
	}
	_ = c.Close()

	stdlog.SetOutput(os.Stderr)
	stdlog.Println("Goodbye!")
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}

// eventLogger returns the protocol event logger for the chosen level.
func eventLogger(level string) log.Logger {
	if level != "debug" {
		return log.NoopLogger{}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return log.NewSlogAdapter(slog.New(handler))
}

// sessionPath resolves the session state file location.
func sessionPath() string {
	if config.SessionFile != "" {
		return config.SessionFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pulse-session.json"
	}
	return filepath.Join(home, ".pulse", "session.json")
}
