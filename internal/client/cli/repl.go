package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Add(ctx context.Context, table string) error
	Edit(ctx context.Context, table, id string) error
	Delete(ctx context.Context, table, id string) error
	List(ctx context.Context, table string) error
	Show(ctx context.Context, table, id string) error
	Sync(ctx context.Context) error
	Push(ctx context.Context) error
	Queue(ctx context.Context) error
	Clear(ctx context.Context, table string) error
	CacheAttachment(ctx context.Context, ref string) error
	ClearCache(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the PlotKeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	help                 — show available commands
//	status               — connectivity and queue summary
//	add <table>          — add a record (interactive field entry)
//	edit <table> <id>    — edit a record (interactive field entry)
//	delete <table> <id>  — delete a record
//	list | l <table>     — list cached records of a table
//	show <table> <id>    — show a single cached record
//	sync                 — run a full push+pull cycle now
//	push                 — drain the mutation queue without pulling
//	queue                — list pending mutations
//	clear <table>        — drop a table's cached records
//	cache <url>          — cache an image attachment for offline use
//	clearcache           — drop all cached attachments
//	exit | quit          — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pk %s > ", statusFn()))
		if !scanner.Scan() {
			return
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
			printlnFn("Available commands: status, add, edit, delete, (l)ist, show, sync, push, queue, clear, cache, clearcache, exit")

		case "status":
			_ = a.Status(ctx)

		case "add":
			if len(args) < 1 {
				printlnFn("Usage: add <table>")
				continue
			}
			_ = a.Add(ctx, args[0])

		case "edit":
			if len(args) < 2 {
				printlnFn("Usage: edit <table> <id>")
				continue
			}
			_ = a.Edit(ctx, args[0], args[1])

		case "delete":
			if len(args) < 2 {
				printlnFn("Usage: delete <table> <id>")
				continue
			}
			_ = a.Delete(ctx, args[0], args[1])

		case "l", "list":
			if len(args) < 1 {
				printlnFn("Usage: list <table>")
				continue
			}
			_ = a.List(ctx, args[0])

		case "show":
			if len(args) < 2 {
				printlnFn("Usage: show <table> <id>")
				continue
			}
			_ = a.Show(ctx, args[0], args[1])

		case "sync":
			_ = a.Sync(ctx)

		case "push":
			_ = a.Push(ctx)

		case "queue":
			_ = a.Queue(ctx)

		case "clear":
			if len(args) < 1 {
				printlnFn("Usage: clear <table>")
				continue
			}
			_ = a.Clear(ctx, args[0])

		case "cache":
			if len(args) < 1 {
				printlnFn("Usage: cache <url>")
				continue
			}
			_ = a.CacheAttachment(ctx, args[0])

		case "clearcache":
			_ = a.ClearCache(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
