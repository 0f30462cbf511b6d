package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/skawahara/update-agent/internal/aggregator"
	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/deliver"
	"github.com/skawahara/update-agent/internal/extract"
	"github.com/skawahara/update-agent/internal/httpx"
	"github.com/skawahara/update-agent/internal/runner"
	"github.com/skawahara/update-agent/internal/summarizer"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	prompts := flag.String("prompts", "", "override prompts directory")
	limit := flag.Int("limit", 0, "max posts to summarize this run")
	outDir := flag.String("out-dir", "", "override output directory for rendered files")
	formats := flag.String("formats", "", "comma-separated formats to generate (html,md)")
	syncFolder := flag.Bool("sync-folder", false, "enable/disable synced-folder copy of the HTML digest")
	notes := flag.Bool("notes", false, "enable/disable Apple Notes update")
	notesTitle := flag.String("notes-title", "", "Apple Notes title template; {date} expands to YYYY-MM-DD")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Only flags the user actually passed override the file config.
	ov := config.Overrides{
		PromptsDir: *prompts,
		OutDir:     *outDir,
		Formats:    *formats,
		NotesTitle: *notesTitle,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "limit":
			ov.Limit = limit
		case "sync-folder":
			ov.SyncFolder = syncFolder
		case "notes":
			ov.Notes = notes
		}
	})
	eff := config.Resolve(cfg, ov)

	client := httpx.New(eff.UserAgent, 0)
	extractor := extract.NewReadability(client)
	agg := aggregator.New(eff, aggregator.BuildSources(eff, client, extractor))

	apiKey := eff.Summarizer.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	var remote summarizer.Remote
	if apiKey != "" {
		remote = summarizer.NewAnthropic(apiKey, eff.Summarizer.Model, eff.Summarizer.MaxTokens)
	} else {
		log.Println("No summarizer API key configured; using local fallback summaries")
	}
	router := summarizer.NewRouter(remote, eff.PromptsDir, eff.Interests)

	var deliverers []deliver.Deliverer
	if eff.Output.SyncFolder.Enabled {
		deliverers = append(deliverers, deliver.NewSyncedFolder(eff.Output.SyncFolder.Folder))
	}
	if eff.Output.Notes.Enabled {
		deliverers = append(deliverers, deliver.NewAppleNotes(eff.Output.Notes.TitleTemplate))
	}

	r := runner.New(eff, agg, router, deliverers)

	// Single-run mode: run the pipeline once and exit.
	if *once {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := r.Run(ctx); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if eff.RunOnStart {
		log.Println("Running initial digest...")
		if err := r.Run(ctx); err != nil {
			log.Printf("Initial run failed: %v", err)
		}
	}

	c := cron.New()
	_, err = c.AddFunc(eff.Schedule, func() {
		log.Println("Cron triggered, running digest...")
		if err := r.Run(ctx); err != nil {
			log.Printf("Scheduled run failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", eff.Schedule, err)
	}
	c.Start()
	log.Printf("Scheduled digest with cron expression: %s", eff.Schedule)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	c.Stop()
	log.Println("Shutdown complete")
}
