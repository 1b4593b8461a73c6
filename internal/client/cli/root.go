package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

func (a *App) getStatus() string {
	if a.isLoggedIn() {
		return "(online)"
	}
	return "(not logged in)"
}

func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to Reelproof upload CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	a.Login(ctx)

	for {
		fmt.Printf("rp %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: add, (l)ist, pause, resume, cancel, retry, clear, max, exit")
			} else {
				fmt.Println("Available commands: register, login, exit")
			}

		case "register":
			a.Register(ctx)
		case "login":
			a.Login(ctx)
		case "add":
			a.add(ctx, args)
		case "l", "list":
			a.list()
		case "pause":
			a.control(args, "pause", a.manager.Pause)
		case "resume":
			a.control(args, "resume", a.manager.Resume)
		case "cancel":
			a.control(args, "cancel", a.manager.Cancel)
		case "retry":
			a.control(args, "retry", a.manager.Retry)
		case "clear":
			a.clear(args)
		case "max":
			if len(args) == 0 {
				fmt.Println("Usage: max <n>")
				continue
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				fmt.Println("max: expected a positive number")
				continue
			}
			a.manager.SetMaxConcurrent(n)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}

}
