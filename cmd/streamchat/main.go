// streamchat is a terminal consumer of the live chat channel. It joins one
// stream, prints recent history followed by live messages, and sends each
// line read from stdin. Anonymous viewers can watch; sending requires a
// session token.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"streamhub/internal/api"
	"streamhub/internal/auth"
	"streamhub/internal/chatclient"
	"streamhub/internal/experiment"
	"streamhub/internal/logging"
	"streamhub/internal/model"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	streamID := flag.Int64("stream", 0, "stream id to join")
	historyLimit := flag.Int("history", 50, "messages of history to load")
	flag.Parse()
	if *streamID <= 0 {
		log.Fatal("-stream is required")
	}

	logger := logging.Setup(os.Getenv("STREAMHUB_LOG_LEVEL"))

	baseURL := os.Getenv("STREAMHUB_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	wsURL := os.Getenv("STREAMHUB_WS_URL")
	if wsURL == "" {
		wsURL = strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	}

	sessionToken := os.Getenv("STREAMHUB_SESSION_TOKEN")
	var opts []api.Option
	if sessionToken != "" {
		opts = append(opts, api.WithAuthToken(sessionToken))
	}
	apiClient := api.NewClient(baseURL, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signed-in viewers chat under a short-lived channel token minted from
	// their session; everyone else connects read-only.
	var channelToken string
	if sessionToken != "" {
		me, err := apiClient.Me(ctx)
		if err != nil {
			log.Fatalf("load profile: %v", err)
		}
		channelToken, err = apiClient.ChannelToken(ctx)
		if err != nil {
			log.Fatalf("mint channel token: %v", err)
		}
		ctx = auth.WithAuth(ctx, auth.AuthContext{UserID: me.ID, Username: me.Username})

		resolver := experiment.NewResolver(apiClient, logger.With("component", "experiment"))
		if variant, source := resolver.Variant(ctx, "chat-reactions"); source == experiment.SourceAssigned {
			logger.Info("experiment active", "experiment", "chat-reactions", "variant", variant)
		}
	}

	guard := auth.NewGuard(func(action string) {
		fmt.Fprintf(os.Stderr, "sign in to %s (set STREAMHUB_SESSION_TOKEN)\n", action)
	})

	chatLogger := logger.With("component", "chat")
	registry := chatclient.NewRegistry(func(token string) chatclient.Dialer {
		return chatclient.DialWebSocket(wsURL, token)
	}, chatLogger)

	client := chatclient.New(*streamID, channelToken, registry, apiClient, chatLogger)
	client.OnMessage(printMessage)

	go chatclient.NewSupervisor(client, chatLogger).Run(ctx)

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("join stream %d: %v", *streamID, err)
	}
	if err := client.LoadHistory(ctx, *historyLimit); err != nil {
		log.Fatalf("load history: %v", err)
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !guard.Require(ctx, "send messages") {
				continue
			}
			if err := client.Send(line); err != nil {
				fmt.Fprintln(os.Stderr, "not sent:", err)
			}
		}
		cancel()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	client.Disconnect()
}

func printMessage(msg model.ChatMessage) {
	name := "anonymous"
	if msg.Author != nil {
		name = msg.Author.Username
	}
	fmt.Printf("%s %s: %s\n", msg.CreatedAt.Local().Format("15:04"), name, msg.Body)
}
