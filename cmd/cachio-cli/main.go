package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/cachio/cachio"
	"github.com/cachio/cachio/config"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <config.yaml> <url> [<url> ...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s cache.yaml https://example.com/api/items\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx := context.Background()
	engine, err := cfg.Engine(ctx, cachio.NewHTTPFetcher(nil), cachio.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building cache: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	for _, rawURL := range os.Args[2:] {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building request for %s: %v\n", rawURL, err)
			os.Exit(1)
		}
		entry, err := engine.Get(ctx, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching %s: %v\n", rawURL, err)
			os.Exit(1)
		}
		fmt.Printf("%s %d %s (%d bytes, served by %s)\n",
			rawURL, entry.StatusCode, entry.Header.Get("Content-Type"), len(entry.Body), entry.Tier)
	}
}
