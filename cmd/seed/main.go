package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/database"
	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/services"
)

// blocklistEntry is one line of a blocklist file: an address followed by an
// optional free-text reason.
type blocklistEntry struct {
	Identifier string
	Reason     string
}

func main() {
	path := "./data/blocklist.txt"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatal("Failed to open blocklist:", err)
	}
	defer f.Close()

	entries, err := parseBlocklist(f)
	if err != nil {
		log.Fatal("Failed to read blocklist:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	audit := services.NewAuditService(db, nil, models.SeverityHigh)
	blocks := services.NewBlockService(db, audit)

	imported, skipped := seedBlocks(context.Background(), blocks, entries)
	fmt.Printf("✓ Imported %d permanent blocks (%d skipped) from %s\n", imported, skipped, path)
}

// parseBlocklist reads one entry per line. Blank lines and # comments are ignored.
func parseBlocklist(r io.Reader) ([]blocklistEntry, error) {
	var out []blocklistEntry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		entry := blocklistEntry{Identifier: fields[0], Reason: "imported from blocklist"}
		if len(fields) > 1 {
			entry.Reason = strings.Join(fields[1:], " ")
		}
		out = append(out, entry)
	}
	return out, sc.Err()
}

func seedBlocks(ctx context.Context, blocks *services.BlockService, entries []blocklistEntry) (imported, skipped int) {
	for _, e := range entries {
		if _, err := blocks.Block(ctx, services.BlockRequest{
			Identifier: e.Identifier,
			Permanent:  true,
			Reason:     e.Reason,
			Actor:      "seed",
		}); err != nil {
			log.Printf("skip %q: %v", e.Identifier, err)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped
}
