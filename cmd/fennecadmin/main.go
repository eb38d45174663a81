// Command fennecadmin is a flag-driven CLI for the Query Surface's admin
// actions (reset-failed, reset-processing, purge-soft-deleted,
// purge-orphans, wipe, config get/set), run against the Store directly
// rather than over HTTP. One action per invocation, selected by -action.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"fennec/internal/config"
	"fennec/internal/modelhost"
	"fennec/internal/query"
	"fennec/internal/store"
)

func main() {
	log.SetFlags(0)
	var (
		action = flag.String("action", "", "reset-failed | reset-processing | purge-soft-deleted | purge-orphans | wipe | config-get | config-set | stats")
		key    = flag.String("key", "", "config key (config-get, config-set)")
		value  = flag.String("value", "", "JSON value (config-set)")
		roots  = flag.String("roots", "", "comma-separated watch roots (purge-orphans)")
		yes    = flag.Bool("yes", false, "confirm a destructive action (wipe)")
	)
	flag.Parse()

	if *action == "" {
		log.Fatal("no -action provided")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	visual := modelhost.NewVisualEncoder(cfg.VisualModel, 512)
	sentence := modelhost.NewSentenceEncoder(cfg.SentenceModel, 384)
	svc := query.New(db, visual, sentence)

	switch *action {
	case "reset-failed":
		n, err := svc.ResetFailed(ctx)
		fail(err)
		fmt.Printf("reset %d failed items to pending\n", n)

	case "reset-processing":
		n, err := svc.ResetProcessing(ctx)
		fail(err)
		fmt.Printf("reset %d processing items to pending\n", n)

	case "purge-soft-deleted":
		n, err := svc.PurgeSoftDeleted(ctx)
		fail(err)
		fmt.Printf("purged %d soft-deleted files\n", n)

	case "purge-orphans":
		n, err := svc.PurgeOrphans(ctx, splitNonEmpty(*roots))
		fail(err)
		fmt.Printf("purged %d orphaned files\n", n)

	case "wipe":
		if !*yes {
			log.Fatal("wipe is destructive; pass -yes to confirm")
		}
		fail(svc.Wipe(ctx))
		fmt.Println("wiped all files, scenes, faces, embeddings and queue items")

	case "config-get":
		if *key == "" {
			log.Fatal("config-get requires -key")
		}
		raw, found, err := svc.ConfigGet(ctx, *key)
		fail(err)
		if !found {
			fmt.Println("null")
			return
		}
		fmt.Println(string(raw))

	case "config-set":
		if *key == "" || *value == "" {
			log.Fatal("config-set requires -key and -value")
		}
		var v any
		if err := json.Unmarshal([]byte(*value), &v); err != nil {
			log.Fatalf("invalid -value JSON: %v", err)
		}
		fail(svc.ConfigSet(ctx, *key, v))
		fmt.Println("ok")

	case "stats":
		stats, err := svc.Stats(ctx)
		fail(err)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		fail(enc.Encode(stats))

	default:
		log.Fatalf("unknown -action %q", *action)
	}
}

func fail(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
