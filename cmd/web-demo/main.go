package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game"
	"github.com/A2152225/MTGEDH-sub013/internal/gateway"
)

// web-demo serves a ready-made two-player game over the websocket
// gateway with no configuration or database. Connect to /ws, send
// {"type":"join_game","game_id":"demo","player_id":"player1"} and
// drive the game with gateway commands.

var addr = flag.String("addr", ":8080", "listen address")

func demoDeck(owner string) []game.Card {
	cards := []game.Card{
		{Name: "Forest", Land: true},
		{Name: "Forest", Land: true},
		{Name: "Forest", Land: true},
		{Name: "Grizzly Bears", Creature: true, Power: 2, Toughness: 2},
		{Name: "Grizzly Bears", Creature: true, Power: 2, Toughness: 2},
		{Name: "Serra Angel", Creature: true, Power: 4, Toughness: 4, Text: "Flying, vigilance"},
		{Name: "Shivan Dragon", Creature: true, Power: 5, Toughness: 5, Text: "Flying"},
		{Name: "Llanowar Elves", Creature: true, Power: 1, Toughness: 1, Text: "{T}: Add {G}"},
	}
	deck := make([]game.Card, 0, len(cards)*3)
	for copyNo := 0; copyNo < 3; copyNo++ {
		for i, card := range cards {
			card.ID = fmt.Sprintf("%s-%d-%d", owner, copyNo, i)
			deck = append(deck, card)
		}
	}
	return deck
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	engine := game.NewEngine(game.Options{Logger: logger, StartingLife: 20})

	gameID, err := engine.CreateGame(game.CreateGameOptions{
		GameID: "demo",
		Players: []game.PlayerSetup{
			{ID: "player1", Name: "Alice", Deck: demoDeck("player1")},
			{ID: "player2", Name: "Bob", Deck: demoDeck("player2")},
		},
	})
	if err != nil {
		logger.Fatal("failed to create demo game", zap.Error(err))
	}
	logger.Info("demo game ready", zap.String("game_id", gameID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := gateway.NewHub(engine, logger)
	go hub.Run(ctx)
	go hub.RunStepExpiry(ctx, time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS([]string{"*"}))

	logger.Info("demo websocket server starting",
		zap.String("addr", *addr),
		zap.String("endpoint", "ws://localhost"+*addr+"/ws"),
	)

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal("ListenAndServe", zap.Error(serveErr))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	cancel()
	server.Close()
}
