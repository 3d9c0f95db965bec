package main

// main.go implements the corert-inspect CLI: it fetches the diagnostic
// snapshot exposed by a service embedding corert and serving the endpoint
// below, and prints it as text or JSON, optionally
// polling on an interval.
//
// The target service is expected to expose:
//   GET /debug/corert/snapshot — JSON payload with cache/resource stats.
//
// The snapshot object is decoded into map[string]any to avoid version skew
// between this CLI and the library.
//
// © 2025 corert authors. MIT License.

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type options struct {
	target   string
	watch    bool
	interval time.Duration
	json     bool
	version  bool
}

var version = "dev"

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.target, "target", "http://localhost:6060", "base URL of the service exposing /debug/corert/snapshot")
	flag.BoolVar(&opts.watch, "watch", false, "poll the snapshot endpoint repeatedly")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "polling interval when -watch is set")
	flag.BoolVar(&opts.json, "json", false, "print the raw JSON snapshot instead of a formatted summary")
	flag.BoolVar(&opts.version, "version", false, "print the CLI version and exit")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap)
}

func fetchSnapshot(ctx context.Context, base string) (map[string]any, error) {
	url := base + "/debug/corert/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func prettyPrint(data map[string]any) error {
	fmt.Printf("Data cache entries:     %v\n", data["data_cache_len"])
	fmt.Printf("Resource cache entries: %v\n", data["resource_cache_len"])
	fmt.Printf("Resource tasks pending: %v\n", data["resource_pending"])
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "corert-inspect:", err)
	os.Exit(1)
}
