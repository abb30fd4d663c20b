package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/goccy/go-json"

	"github.com/pulse-mq/pulse-go/pkg/client"
	"github.com/pulse-mq/pulse-go/pkg/discovery"
	"github.com/pulse-mq/pulse-go/pkg/session"
)

// Interactive handles the interactive command loop for pulse-client.
type Interactive struct {
	client  *client.Client
	store   *session.Store
	browser *discovery.Browser
	rl      *readline.Instance

	// subs maps subscribed topic to its subscription id.
	subs map[string]client.SubscriptionID

	// found holds the brokers from the last discover run, in the order
	// they were printed, so 'connect <n>' can refer to them.
	found []*discovery.BrokerService
}

// NewInteractive creates the interactive handler and hooks the client
// lifecycle signals into the prompt output.
func NewInteractive(c *client.Client, store *session.Store) (*Interactive, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pulse> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	ui := &Interactive{
		client:  c,
		store:   store,
		browser: discovery.NewBrowser(discovery.BrowserConfig{}),
		rl:      rl,
		subs:    make(map[string]client.SubscriptionID),
	}

	c.OnConnect(func() {
		ui.Printf("\nConnected to broker\n")
	})
	c.OnReconnect(func() {
		ui.Printf("\nReconnected to broker\n")
	})
	c.OnDisconnect(func(identity string) {
		ui.Printf("\nBroker closed the session for %s\n", identity)
	})
	c.OnStateChange(func(old, new client.State) {
		if new == client.StateConnecting {
			ui.Printf("\nConnecting...\n")
		}
	})

	return ui, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (ui *Interactive) Stdout() io.Writer {
	return ui.rl.Stdout()
}

// Printf writes to the prompt-coordinated output and redraws the
// prompt. Safe to call from client callback goroutines.
func (ui *Interactive) Printf(format string, args ...any) {
	fmt.Fprintf(ui.rl.Stdout(), format, args...)
	ui.rl.Refresh()
}

// Run starts the interactive command loop.
func (ui *Interactive) Run(ctx context.Context, cancel context.CancelFunc) {
	defer ui.rl.Close()

	ui.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := ui.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(ui.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			ui.printHelp()

		case "discover", "d":
			ui.cmdDiscover(ctx, args)

		case "connect", "c":
			ui.cmdConnect(args)

		case "sub", "subscribe":
			ui.cmdSub(args)

		case "unsub", "unsubscribe":
			ui.cmdUnsub(args)

		case "topics":
			ui.cmdTopics()

		case "pub", "publish", "p":
			ui.cmdPub(args)

		case "status", "s":
			ui.cmdStatus()

		case "close", "disconnect":
			ui.cmdClose()

		case "quit", "exit", "q":
			fmt.Fprintln(ui.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(ui.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (ui *Interactive) printHelp() {
	fmt.Fprintln(ui.rl.Stdout(), `
Pulse Client Commands:
  Discovery & Connection:
    discover [seconds]      - Discover brokers on the local network
    connect [host [port]]   - Connect to a broker (or 'connect <n>' from discover)
    close                   - Close the connection
    status                  - Show client status

  Messaging:
    sub <topic>             - Subscribe to a topic
    unsub <topic>           - Unsubscribe from a topic
    topics                  - List subscribed topics
    pub <topic> <message>   - Publish a message (JSON or plain text)

  General:
    help                    - Show this help
    quit                    - Exit client`)
}

// cmdDiscover browses the local network for brokers.
func (ui *Interactive) cmdDiscover(ctx context.Context, args []string) {
	wait := 3 * time.Second
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintln(ui.rl.Stdout(), "Usage: discover [seconds]")
			return
		}
		wait = time.Duration(secs) * time.Second
	}

	fmt.Fprintf(ui.rl.Stdout(), "Discovering brokers for %s...\n", wait)

	browseCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	results, err := ui.browser.Browse(browseCtx)
	if err != nil {
		fmt.Fprintf(ui.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}

	ui.found = ui.found[:0]
	for svc := range results {
		ui.found = append(ui.found, svc)
		host, port := svc.Endpoint()
		fmt.Fprintf(ui.rl.Stdout(), "  [%d] %s at %s:%d (codec: %s)\n",
			len(ui.found), svc.InstanceName, host, port, svc.Codec)
	}

	if len(ui.found) == 0 {
		fmt.Fprintln(ui.rl.Stdout(), "No brokers found")
		return
	}
	fmt.Fprintln(ui.rl.Stdout(), "Use 'connect <n>' to connect")
}

// cmdConnect connects to a broker by address, discover index, or the
// endpoint remembered from the previous session.
func (ui *Interactive) cmdConnect(args []string) {
	var host string
	port := config.Port

	switch len(args) {
	case 0:
		// Reuse the stored endpoint.
		if err := ui.client.Connect("", 0); err != nil {
			fmt.Fprintf(ui.rl.Stdout(), "Connect failed: %v\n", err)
			fmt.Fprintln(ui.rl.Stdout(), "Usage: connect <host> [port] | connect <n>")
		}
		return

	case 1:
		// A small number refers to a discover result.
		if n, err := strconv.Atoi(args[0]); err == nil {
			if n < 1 || n > len(ui.found) {
				fmt.Fprintf(ui.rl.Stdout(), "No broker [%d]; run 'discover' first\n", n)
				return
			}
			h, p := ui.found[n-1].Endpoint()
			host, port = h, p
		} else {
			host = args[0]
		}

	default:
		host = args[0]
		p, err := strconv.Atoi(args[1])
		if err != nil || p < 1 || p > 65535 {
			fmt.Fprintf(ui.rl.Stdout(), "Invalid port: %s\n", args[1])
			return
		}
		port = p
	}

	if err := ui.client.Connect(host, port); err != nil {
		fmt.Fprintf(ui.rl.Stdout(), "Connect failed: %v\n", err)
	}
}

// cmdSub subscribes to a topic.
func (ui *Interactive) cmdSub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(ui.rl.Stdout(), "Usage: sub <topic>")
		return
	}
	topic := args[0]

	if _, exists := ui.subs[topic]; exists {
		fmt.Fprintf(ui.rl.Stdout(), "Already subscribed to %q\n", topic)
		return
	}
	ui.subscribe(topic)
	fmt.Fprintf(ui.rl.Stdout(), "Subscribed to %q\n", topic)
}

// subscribe registers the message handler for a topic.
func (ui *Interactive) subscribe(topic string) {
	id := ui.client.Subscribe(topic, func(topic string, message any) {
		ui.Printf("\n[%s] %s: %s\n", time.Now().Format("15:04:05"), topic, formatMessage(message))
	})
	ui.subs[topic] = id
}

// cmdUnsub removes a topic subscription.
func (ui *Interactive) cmdUnsub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(ui.rl.Stdout(), "Usage: unsub <topic>")
		return
	}
	topic := args[0]

	id, exists := ui.subs[topic]
	if !exists {
		fmt.Fprintf(ui.rl.Stdout(), "Not subscribed to %q\n", topic)
		return
	}
	ui.client.Unsubscribe(topic, id)
	delete(ui.subs, topic)
	fmt.Fprintf(ui.rl.Stdout(), "Unsubscribed from %q\n", topic)
}

// cmdTopics lists the subscribed topics.
func (ui *Interactive) cmdTopics() {
	if len(ui.subs) == 0 {
		fmt.Fprintln(ui.rl.Stdout(), "No subscriptions")
		return
	}
	topics := make([]string, 0, len(ui.subs))
	for topic := range ui.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		fmt.Fprintf(ui.rl.Stdout(), "  %s\n", topic)
	}
}

// cmdPub publishes a message. The body is parsed as JSON when it looks
// like JSON, otherwise it is sent as a plain string.
func (ui *Interactive) cmdPub(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(ui.rl.Stdout(), "Usage: pub <topic> <message>")
		fmt.Fprintln(ui.rl.Stdout(), `  Example: pub metrics {"temp": 21.5}`)
		return
	}
	topic := args[0]
	body := strings.Join(args[1:], " ")

	var message any
	if err := json.Unmarshal([]byte(body), &message); err != nil {
		message = body
	}

	if err := ui.client.Send(topic, message); err != nil {
		fmt.Fprintf(ui.rl.Stdout(), "Publish failed: %v\n", err)
		return
	}
	if ui.client.State() != client.StateConnected {
		fmt.Fprintln(ui.rl.Stdout(), "Not connected; message dropped")
		return
	}
	fmt.Fprintln(ui.rl.Stdout(), "OK")
}

// cmdStatus shows the client status.
func (ui *Interactive) cmdStatus() {
	fmt.Fprintln(ui.rl.Stdout(), "\nClient Status")
	fmt.Fprintln(ui.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(ui.rl.Stdout(), "  Identity:       %s\n", ui.client.Identity())
	fmt.Fprintf(ui.rl.Stdout(), "  State:          %s\n", ui.client.State())

	if host, port, ok := ui.client.Endpoint(); ok {
		fmt.Fprintf(ui.rl.Stdout(), "  Broker:         %s:%d\n", host, port)
	} else {
		fmt.Fprintf(ui.rl.Stdout(), "  Broker:         none\n")
	}

	fmt.Fprintf(ui.rl.Stdout(), "  Connections:    %d\n", ui.client.SuccessCount())
	fmt.Fprintf(ui.rl.Stdout(), "  Subscriptions:  %d\n", len(ui.subs))
	fmt.Fprintln(ui.rl.Stdout())
}

// cmdClose closes the connection and stops reconnecting.
func (ui *Interactive) cmdClose() {
	if err := ui.client.Close(); err != nil {
		fmt.Fprintf(ui.rl.Stdout(), "Close failed: %v\n", err)
		return
	}
	fmt.Fprintln(ui.rl.Stdout(), "Connection closed")
}

// saveSession persists the identity, endpoint, and subscriptions for
// the next run.
func (ui *Interactive) saveSession() error {
	state := &session.State{
		Identity: ui.client.Identity(),
	}
	if host, port, ok := ui.client.Endpoint(); ok {
		state.LastHost = host
		state.LastPort = port
	}
	for topic := range ui.subs {
		state.Topics = append(state.Topics, topic)
	}
	sort.Strings(state.Topics)
	return ui.store.Save(state)
}

// formatMessage renders a decoded payload for the console.
func formatMessage(message any) string {
	switch v := message.(type) {
	case string:
		return v
	case nil:
		return "<nil>"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
