package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"SonaChat/sdk/go/sonachat"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/identity", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"identity": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		})
	})
	mux.HandleFunc("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(sonachat.Conversation{
				ID:          "conv-demo",
				Name:        "New Chat",
				Mode:        "trading",
				LastUpdated: time.Now().UnixMilli(),
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sonachat.Exchange{
			User:      sonachat.Message{ID: "m1", Content: "swap 10 SOL for USDC", Role: "user"},
			Assistant: sonachat.Message{ID: "m2", Content: "Sure!", Role: "assistant"},
			Action: &sonachat.CryptoAction{
				Type:    "swap",
				Data:    sonachat.ActionData{TokenA: &sonachat.TokenInfo{Symbol: "SOL", Price: 150}},
				Message: "Sure!",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := sonachat.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	identity, err := client.Attach(ctx, "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		panic(err)
	}
	fmt.Printf("attached as %s\n", identity)

	conv, err := client.CreateConversation(ctx, "trading")
	if err != nil {
		panic(err)
	}
	fmt.Printf("created conversation %s (mode=%s)\n", conv.ID, conv.Mode)

	exchange, err := client.SendMessage(ctx, "swap 10 SOL for USDC")
	if err != nil {
		panic(err)
	}
	fmt.Printf("assistant replied %q", exchange.Assistant.Content)
	if exchange.Action != nil {
		fmt.Printf(" with a %s action on %s", exchange.Action.Type, exchange.Action.Data.TokenA.Symbol)
	}
	fmt.Println()
}
