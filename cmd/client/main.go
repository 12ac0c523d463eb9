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

	"collabify-backend/internal/board"
	"collabify-backend/internal/boardclient"
)

// 헤드리스 보드 클라이언트: 터미널에서 보드에 접속해 실시간 동기화를 확인하는 도구.
//
// Usage:
//
//	client -server http://localhost:8000 -board 1 -token <access token>
//
// Commands: text <x> <y> <value...> | move <id> <x> <y> | del <id> |
// say <message...> | save | doc | peers | chat | quit
func main() {
	serverURL := flag.String("server", "http://localhost:8000", "server base URL")
	boardID := flag.String("board", "", "board id to open")
	token := flag.String("token", "", "access token")
	flag.Parse()

	if *boardID == "" || *token == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := strings.Replace(*serverURL, "http", "ws", 1)
	api := boardclient.NewAPIClient(*serverURL, *token)

	store := boardclient.NewStore(*boardID, nil, api)
	conn := boardclient.NewConn(wsURL, *boardID, *token, store)
	store.SetPublisher(conn)

	go func() {
		if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("connection ended: %v", err)
		}
	}()

	if err := store.Load(ctx); err != nil {
		log.Fatalf("❌ Failed to load board %s: %v", *boardID, err)
	}
	doc := store.Document()
	fmt.Printf("✅ Board %s loaded: %d blocks, %d strokes\n", *boardID, len(doc.Blocks), len(doc.Strokes))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
		conn.Close()
		os.Exit(0)
	}()

	repl(ctx, store)
	conn.Close()
}

func repl(ctx context.Context, store *boardclient.Store) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		switch fields[0] {
		case "text":
			if len(fields) < 4 {
				fmt.Println("usage: text <x> <y> <value...>")
				break
			}
			x, y := parseFloat(fields[1]), parseFloat(fields[2])
			b := store.AddBlock(board.KindText, x, y, strings.Join(fields[3:], " "))
			fmt.Printf("added block %s\n", b.ID)

		case "move":
			if len(fields) != 4 {
				fmt.Println("usage: move <id> <x> <y>")
				break
			}
			store.Mutate(board.Mutation{
				Action:  board.ActionMove,
				BlockID: fields[1],
				X:       parseFloat(fields[2]),
				Y:       parseFloat(fields[3]),
			})

		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <id>")
				break
			}
			store.Mutate(board.Mutation{Action: board.ActionDelete, BlockID: fields[1]})

		case "say":
			if len(fields) < 2 {
				fmt.Println("usage: say <message...>")
				break
			}
			store.SendChat(strings.Join(fields[1:], " "), "cli")

		case "save":
			if err := store.Save(ctx); err != nil {
				fmt.Printf("save failed: %v (local edits kept)\n", err)
			} else {
				fmt.Println("saved")
			}

		case "doc":
			doc := store.Document()
			for _, b := range doc.Blocks {
				fmt.Printf("  [%s] %s at (%.0f,%.0f): %q\n", b.ID, b.Kind, b.X, b.Y, b.Value)
			}
			fmt.Printf("  %d strokes\n", len(doc.Strokes))

		case "peers":
			for _, p := range store.Peers() {
				typing := ""
				if p.Typing {
					typing = " (typing...)"
				}
				fmt.Printf("  %d %s%s\n", p.ID, p.Name, typing)
			}

		case "chat":
			for _, m := range store.Messages() {
				fmt.Printf("  %s: %s\n", m.SenderName, m.Text)
			}

		case "quit", "exit":
			return

		default:
			fmt.Println("commands: text move del say save doc peers chat quit")
		}
		fmt.Print("> ")
	}
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}
