// Command pulse-broker runs a Pulse message broker.
//
// The broker accepts Pulse clients over TCP, answers their handshake
// and heartbeat packets, and fans every published message out to all
// other connected clients. Optionally it records sessions and
// publishes to a SQLite journal and announces itself on the local
// network over mDNS.
//
// Usage:
//
//	pulse-broker [flags]
//
// Flags:
//
//	-listen string     Listen address (default ":7110")
//	-config string     Configuration file path (YAML)
//	-journal string    SQLite journal path (empty disables journaling)
//	-mdns              Advertise the broker over mDNS (default true)
//	-name string       mDNS instance name (default hostname)
//	-codec string      Payload codec hint advertised to clients: json, cbor (default "json")
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start a broker on the default port with mDNS advertising
//	pulse-broker
//
//	# Start with a journal and debug packet logging
//	pulse-broker -journal /var/lib/pulse/journal.db -log-level debug
//
//	# Start from a config file, mDNS off
//	pulse-broker -config /etc/pulse/broker.yaml -mdns=false
package main

import (
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulse-mq/pulse-go/pkg/broker"
	"github.com/pulse-mq/pulse-go/pkg/discovery"
	"github.com/pulse-mq/pulse-go/pkg/duration"
	"github.com/pulse-mq/pulse-go/pkg/log"
	"github.com/pulse-mq/pulse-go/pkg/payload"
)

// Config holds the broker configuration.
type Config struct {
	Listen     string
	ConfigFile string
	Journal    string
	MDNS       bool
	Name       string
	Codec      string
	LogLevel   string
}

// FileConfig is the YAML configuration file layout. Flag values take
// precedence over file values.
type FileConfig struct {
	Listen         string            `yaml:"listen"`
	Journal        string            `yaml:"journal"`
	MDNS           *bool             `yaml:"mdns"`
	Name           string            `yaml:"name"`
	Codec          string            `yaml:"codec"`
	LogLevel       string            `yaml:"log_level"`
	MDNSTTL        duration.Duration `yaml:"mdns_ttl"`
	MaxMessageSize uint32            `yaml:"max_message_size"`
}

var (
	config  Config
	mdnsTTL = 120 * time.Second
	maxMsg  uint32
)

func init() {
	flag.StringVar(&config.Listen, "listen", ":7110", "Listen address")
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.Journal, "journal", "", "SQLite journal path (empty disables journaling)")
	flag.BoolVar(&config.MDNS, "mdns", true, "Advertise the broker over mDNS")
	flag.StringVar(&config.Name, "name", "", "mDNS instance name (default hostname)")
	flag.StringVar(&config.Codec, "codec", "json", "Payload codec hint advertised to clients: json, cbor")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile); err != nil {
			stdlog.Fatalf("Failed to load config file: %v", err)
		}
	}

	setupLogging(config.LogLevel)

	stdlog.Println("Pulse Broker")
	stdlog.Println("============")
	stdlog.Printf("Listen address: %s", config.Listen)

	if err := validateConfig(); err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}
	applyDefaults()

	var journal *broker.Journal
	if config.Journal != "" {
		j, err := broker.OpenJournal(config.Journal)
		if err != nil {
			stdlog.Fatalf("Failed to open journal: %v", err)
		}
		journal = j
		defer journal.Close()
		stdlog.Printf("Journal: %s", config.Journal)
	}

	b := broker.New(broker.Config{
		Address:        config.Listen,
		MaxMessageSize: maxMsg,
		Journal:        journal,
		Logger:         eventLogger(config.LogLevel),
	})

	if err := b.Start(); err != nil {
		stdlog.Fatalf("Failed to start broker: %v", err)
	}
	stdlog.Printf("Broker listening on %s", b.Addr())

	var advertiser *discovery.Advertiser
	if config.MDNS {
		advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{TTL: mdnsTTL})
		err := advertiser.Advertise(&discovery.BrokerInfo{
			Name:  config.Name,
			Port:  listenPort(b),
			Codec: config.Codec,
		})
		if err != nil {
			stdlog.Printf("Warning: mDNS advertising failed: %v", err)
			advertiser = nil
		} else {
			stdlog.Printf("Advertising as %q via mDNS", config.Name)
		}
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	if advertiser != nil {
		advertiser.Stop()
	}
	if err := b.Stop(); err != nil {
		stdlog.Printf("Error stopping broker: %v", err)
	}

	stdlog.Println("Goodbye!")
}

// loadConfigFile merges file values into config. Flags explicitly set
// on the command line win over the file.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fc.Listen != "" && !set["listen"] {
		config.Listen = fc.Listen
	}
	if fc.Journal != "" && !set["journal"] {
		config.Journal = fc.Journal
	}
	if fc.MDNS != nil && !set["mdns"] {
		config.MDNS = *fc.MDNS
	}
	if fc.Name != "" && !set["name"] {
		config.Name = fc.Name
	}
	if fc.Codec != "" && !set["codec"] {
		config.Codec = fc.Codec
	}
	if fc.LogLevel != "" && !set["log-level"] {
		config.LogLevel = fc.LogLevel
	}
	if fc.MDNSTTL > 0 {
		mdnsTTL = fc.MDNSTTL.Std()
	}
	if fc.MaxMessageSize > 0 {
		maxMsg = fc.MaxMessageSize
	}
	return nil
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
// Packet-level traffic is only worth seeing at debug.
func eventLogger(level string) log.Logger {
	if level != "debug" {
		return log.NoopLogger{}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return log.NewSlogAdapter(slog.New(handler))
}

func validateConfig() error {
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		stdlog.Printf("Warning: unknown log level %q, using info", config.LogLevel)
		config.LogLevel = "info"
	}
	if _, err := payload.ByName(config.Codec); err != nil {
		return err
	}
	return nil
}

func applyDefaults() {
	if config.Name == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "pulse-broker"
		}
		config.Name = hostname
	}
}

// listenPort extracts the port from the broker's bound address. The
// listen flag may use port 0 to ask the kernel for a free port.
func listenPort(b *broker.Broker) uint16 {
	addr := b.Addr()
	if addr == nil {
		return broker.DefaultPort
	}
	s := addr.String()
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return broker.DefaultPort
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return broker.DefaultPort
	}
	return uint16(port)
}
