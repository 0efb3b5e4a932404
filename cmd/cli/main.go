package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	grpcclient "tradeflow/internal/grpc"
	"tradeflow/pkg/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const requestTimeout = 5 * time.Second

func main() {
	serverAddr := flag.String("addr", "127.0.0.1:9090", "address of the TradeFlow gRPC server")
	flag.Parse()

	fmt.Printf("Attempting to connect to server at %s...\n", *serverAddr)

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to create client for %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	client := grpcclient.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	instruments, err := client.Instruments(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to reach server at %s: %v\nMake sure the server is running with 'go run ./cmd/server'", *serverAddr, err)
	}

	fmt.Println("TradeFlow CLI")
	fmt.Println("Connected to server at", *serverAddr)
	fmt.Printf("Instruments: ")
	for _, instrument := range instruments {
		fmt.Printf("%s ", instrument.Symbol)
	}
	fmt.Println()
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("Available commands:")
		fmt.Println("1. dashboard [query]       - Show portfolio and holdings (e.g., dashboard tech)")
		fmt.Println("2. follow <symbol>         - Follow a stock")
		fmt.Println("3. unfollow <symbol>       - Stop following a stock")
		fmt.Println("4. shares <symbol> <n>     - Add shares to a position")
		fmt.Println("5. watch [symbols]         - Watch live quotes (e.g., watch GOOG,NVDA)")
		fmt.Println("6. notifications           - List notifications")
		fmt.Println("7. read [id]               - Mark one or all notifications read")
		fmt.Println("8. watch-notifications [c] - Watch new notifications (e.g., watch-notifications price_alert)")
		fmt.Println("9. signout                 - Sign out and stop the session")
		fmt.Println("10. quit                   - Exit the application")
		fmt.Print("\nEnter command: ")

		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "1", "dashboard":
			showDashboard(client, strings.Join(parts[1:], " "))

		case "2", "follow":
			if len(parts) < 2 {
				fmt.Println("Usage: follow <symbol>")
				continue
			}
			follow(client, parts[1])

		case "3", "unfollow":
			if len(parts) < 2 {
				fmt.Println("Usage: unfollow <symbol>")
				continue
			}
			unfollow(client, parts[1])

		case "4", "shares":
			if len(parts) < 3 {
				fmt.Println("Usage: shares <symbol> <n>")
				continue
			}
			addShares(client, parts[1], parts[2])

		case "5", "watch":
			var symbols []string
			if len(parts) > 1 {
				symbols = strings.Split(parts[1], ",")
			}
			watchQuotes(client, symbols)

		case "6", "notifications":
			listNotifications(client)

		case "7", "read":
			id := ""
			if len(parts) > 1 {
				id = parts[1]
			}
			markRead(client, id)

		case "8", "watch-notifications":
			var categories []models.Category
			if len(parts) > 1 {
				for _, name := range strings.Split(parts[1], ",") {
					categories = append(categories, models.ParseCategory(name))
				}
			}
			watchNotifications(client, categories)

		case "9", "signout":
			signOut(client)
			return

		case "10", "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
		}

		fmt.Println()
	}
}

func showDashboard(client *grpcclient.Client, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	d, err := client.Dashboard(ctx, query)
	if err != nil {
		log.Printf("Error getting dashboard: %v", err)
		return
	}

	fmt.Printf("Signed in as %s\n", d.User.Email)
	fmt.Printf("Portfolio value: $%.2f  P&L: %+.2f (%+.2f%%)  Positions: %d\n",
		d.Snapshot.TotalValue, d.Snapshot.TotalPnL, d.Snapshot.TotalReturnPercent, d.Snapshot.Positions)
	fmt.Println(strings.Repeat("-", 72))

	if len(d.Holdings) == 0 {
		if query != "" {
			fmt.Printf("No holdings match %q\n", query)
		} else {
			fmt.Println("Not following any stocks yet")
		}
	}
	for _, h := range d.Holdings {
		fmt.Printf("%-5s %-18s $%9.2f %+8.2f (%+.2f%%)  H %.2f L %.2f  Vol %d  %d sh  $%.2f (%.1f%%)\n",
			h.Symbol, h.Name, h.Price, h.Change, h.ChangePercent, h.High, h.Low, h.Volume, h.Shares, h.Value, h.Allocation)
	}

	if len(d.TopMovers) > 0 {
		fmt.Printf("\nTop movers: %s\n", strings.Join(d.TopMovers, ", "))
	}

	if len(d.Available) > 0 {
		fmt.Printf("\nAvailable to follow: %s\n", strings.Join(d.Available, ", "))
	}
	fmt.Printf("Unread notifications: %d\n", d.UnreadCount)
}

func follow(client *grpcclient.Client, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := client.Follow(ctx, symbol)
	if err != nil {
		log.Printf("Error following %s: %v", symbol, err)
		return
	}

	p := result.Position
	fmt.Printf("Now following %s at $%.2f with %d shares\n", p.Symbol, p.Price, p.Shares)
	if !result.Persisted {
		fmt.Printf("Warning: %s\n", result.Warning)
	}
}

func unfollow(client *grpcclient.Client, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := client.Unfollow(ctx, symbol)
	if err != nil {
		log.Printf("Error unfollowing %s: %v", symbol, err)
		return
	}

	fmt.Printf("No longer following %s\n", strings.ToUpper(symbol))
	if !result.Persisted {
		fmt.Printf("Warning: %s\n", result.Warning)
	}
}

func addShares(client *grpcclient.Client, symbol, count string) {
	delta, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		fmt.Printf("Invalid share count: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	p, err := client.AddShares(ctx, symbol, delta)
	if err != nil {
		log.Printf("Error adding shares: %v", err)
		return
	}
	fmt.Printf("%s now holds %d shares worth $%.2f\n", p.Symbol, p.Shares, p.MarketValue())
}

func watchQuotes(client *grpcclient.Client, symbols []string) {
	if len(symbols) == 0 {
		fmt.Println("Watching all followed stocks (Press Ctrl+C to stop)")
	} else {
		fmt.Printf("Watching quotes for: %v (Press Ctrl+C to stop)\n", symbols)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recv, err := client.StreamQuotes(ctx, symbols)
	if err != nil {
		log.Printf("Error subscribing to quotes: %v", err)
		return
	}

	for {
		tick, err := recv()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Error receiving quote: %v", err)
			}
			return
		}

		fmt.Printf("[%s] %-5s $%.2f %+.2f (%+.2f%%) vol %d\n",
			tick.Timestamp.Local().Format("15:04:05"), tick.Symbol, tick.Price, tick.Change, tick.ChangePercent, tick.Volume)
	}
}

func listNotifications(client *grpcclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	d, err := client.Dashboard(ctx, "")
	if err != nil {
		log.Printf("Error getting notifications: %v", err)
		return
	}

	if len(d.Notifications) == 0 {
		fmt.Println("No notifications")
		return
	}

	now := time.Now()
	fmt.Printf("%d notification(s), %d unread:\n\n", len(d.Notifications), d.UnreadCount)
	for i, n := range d.Notifications {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %d. [%s] %s (%s)\n", marker, i+1, n.Category, n.Title, n.Age(now))
		fmt.Printf("     %s\n", n.Message)
		fmt.Printf("     ID: %s\n", n.ID)
	}
}

func markRead(client *grpcclient.Client, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	n, err := client.MarkRead(ctx, id)
	if err != nil {
		log.Printf("Error marking notifications read: %v", err)
		return
	}
	fmt.Printf("Marked %d notification(s) read\n", n)
}

func watchNotifications(client *grpcclient.Client, categories []models.Category) {
	fmt.Println("Watching notifications (Press Ctrl+C to stop)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recv, err := client.StreamNotifications(ctx, categories...)
	if err != nil {
		log.Printf("Error subscribing to notifications: %v", err)
		return
	}

	for {
		n, err := recv()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Error receiving notification: %v", err)
			}
			return
		}

		fmt.Printf("\n[%s] %s\n", n.CreatedAt.Local().Format("15:04:05"), n.Title)
		fmt.Printf("%s\n", n.Message)
		fmt.Println(strings.Repeat("-", 40))
	}
}

func signOut(client *grpcclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.SignOut(ctx); err != nil {
		log.Printf("Error signing out: %v", err)
		return
	}
	fmt.Println("Signed out. Goodbye!")
}
