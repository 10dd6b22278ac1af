package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"media-encoder/internal/catalog"
)

const defaultTranscodeDir = "/transcodes"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dbPath := os.Getenv("ENCODER_DATABASE_PATH")
	if dbPath == "" {
		transcodeDir := os.Getenv("ENCODER_TRANSCODE_PATH")
		if transcodeDir == "" {
			transcodeDir = defaultTranscodeDir
		}
		dbPath = filepath.Join(transcodeDir, ".catalog.db")
	}

	store, err := catalog.NewStore(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure ENCODER_DATABASE_PATH or ENCODER_TRANSCODE_PATH is set correctly (current: %s)\n", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog database: %v\n", err)
		}
	}()

	switch command {
	case "status":
		if !showStatus(ctx, store, dbPath) {
			os.Exit(1)
		}
	case "clear":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: clear requires a server name (jellyfin or plex)")
			os.Exit(1)
		}
		if !clearServer(ctx, store, os.Args[2]) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: catalogctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status          Show catalog item counts")
	fmt.Println("  clear <server>  Remove all catalog rows for a server (jellyfin or plex)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ENCODER_DATABASE_PATH   Catalog database file (overrides the default)")
	fmt.Println("  ENCODER_TRANSCODE_PATH  Transcode root holding .catalog.db (default: /transcodes)")
}

func showStatus(ctx context.Context, store *catalog.Store, dbPath string) bool {
	counts, err := store.Counts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read catalog counts: %v\n", err)
		return false
	}

	fmt.Printf("Catalog database: %s\n", dbPath)
	fmt.Printf("  Movies:   %d\n", counts[catalog.TypeMovie])
	fmt.Printf("  Episodes: %d\n", counts[catalog.TypeEpisode])
	return true
}

func clearServer(ctx context.Context, store *catalog.Store, server string) bool {
	if server != catalog.SourceJellyfin && server != catalog.SourcePlex {
		fmt.Fprintf(os.Stderr, "Error: unknown server %q (expected jellyfin or plex)\n", sanitizeCommand(server))
		return false
	}

	// Replacing a server's contribution with nothing deletes its rows in
	// one transaction, same as a scan that found an empty library.
	if err := store.ReplaceAll(ctx, server, nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to clear %s catalog: %v\n", server, err)
		return false
	}

	fmt.Printf("Cleared all catalog rows for %s\n", server)
	return true
}

// sanitizeCommand strips everything but [a-zA-Z0-9_-] so user-supplied
// command names can be echoed back safely.
func sanitizeCommand(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
