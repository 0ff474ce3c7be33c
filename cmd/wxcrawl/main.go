// Command wxcrawl crawls WeChat official-account articles through a
// browser-automation backend and saves them as Markdown or JSON.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wutongci/wxcrawl/pkg/backend/cdp"
	"github.com/wutongci/wxcrawl/pkg/backend/pw"
	"github.com/wutongci/wxcrawl/pkg/config"
	"github.com/wutongci/wxcrawl/pkg/content"
	"github.com/wutongci/wxcrawl/pkg/crawler"
	"github.com/wutongci/wxcrawl/pkg/session"
	"github.com/wutongci/wxcrawl/pkg/storage"
)

const version = "0.1.0"

type cliFlags struct {
	configFile  string
	url         string
	batchFile   string
	outputDir   string
	format      string
	backend     string
	headless    bool
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("wxcrawl v%s\n", version)
		return
	}
	if flags.url == "" && flags.batchFile == "" {
		fmt.Fprintln(os.Stderr, "either -url or -batch is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.url, "url", "", "Article URL to crawl")
	flag.StringVar(&flags.batchFile, "batch", "", "File with one article URL per line")
	flag.StringVar(&flags.outputDir, "output", "", "Output directory (overrides config)")
	flag.StringVar(&flags.format, "format", "", "Output format: markdown or json (overrides config)")
	flag.StringVar(&flags.backend, "backend", "", "Browser backend: cdp or playwright (overrides config)")
	flag.BoolVar(&flags.headless, "headless", true, "Run the browser headless")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "wxcrawl - WeChat article crawler\n\n")
		fmt.Fprintf(os.Stderr, "Usage: wxcrawl [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  wxcrawl -url https://mp.weixin.qq.com/s/abc123\n")
		fmt.Fprintf(os.Stderr, "  wxcrawl -batch urls.txt -format json\n")
	}

	flag.Parse()
	return flags
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	applyOverrides(cfg, flags)

	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Shutdown()

	store := session.New(session.Config{
		CanonicalSteps:  crawler.CanonicalSteps,
		CleanupInterval: cfg.Session.CleanupInterval,
		MaxAge:          cfg.Session.MaxAge,
	})
	defer store.Destroy()

	writer, err := storage.NewWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}

	orch, err := crawler.New(crawler.Config{
		Driver:      driver,
		Store:       store,
		Pipeline:    content.NewPipeline(cfg.Crawl.AdKeywords),
		Saver:       writer,
		URLPatterns: cfg.Crawl.URLPatterns,
	})
	if err != nil {
		return err
	}

	opts := crawler.Options{
		OutputFormat:      cfg.Output.Format,
		SaveImages:        cfg.Crawl.SaveImages,
		CleanContent:      cfg.Crawl.CleanContent,
		Timeout:           cfg.Crawl.Timeout,
		RetryAttempts:     cfg.Crawl.RetryAttempts,
		RetryBackoff:      cfg.Crawl.RetryBackoff,
		DelayBetweenSteps: cfg.Crawl.DelayBetweenSteps,
		SessionTimeout:    cfg.Crawl.SessionTimeout,
	}

	if flags.batchFile != "" {
		urls, err := readURLs(flags.batchFile)
		if err != nil {
			return err
		}
		results := orch.RunBatch(ctx, urls, opts, crawler.BatchOptions{
			Concurrency: cfg.Batch.Concurrency,
			GroupDelay:  cfg.Batch.GroupDelay,
		})
		return report(results)
	}

	return report([]*crawler.Result{orch.Run(ctx, flags.url, opts)})
}

func applyOverrides(cfg *config.Config, flags *cliFlags) {
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}
	if flags.format != "" {
		cfg.Output.Format = flags.format
	}
	if flags.backend != "" {
		cfg.Backend.Kind = flags.backend
	}
	cfg.Backend.Headless = flags.headless
}

func newDriver(cfg *config.Config) (crawler.Driver, error) {
	switch cfg.Backend.Kind {
	case config.BackendPlaywright:
		return pw.NewDriver(pw.Config{Headless: cfg.Backend.Headless}), nil
	case config.BackendCDP:
		return cdp.NewDriver(cdp.Config{
			Headless:  cfg.Backend.Headless,
			UserAgent: cfg.Backend.UserAgent,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("batch file contains no URLs")
	}
	return urls, nil
}

// report prints a per-URL summary and exits non-zero via the caller when
// every crawl failed.
func report(results []*crawler.Result) error {
	failed := 0
	for _, res := range results {
		summary := map[string]any{
			"success":  res.Success,
			"url":      res.URL,
			"title":    res.Title,
			"output":   res.OutputPath,
			"duration": res.Duration.String(),
		}
		if res.Error != "" {
			summary["error"] = res.Error
		}
		line, _ := json.Marshal(summary)
		fmt.Println(string(line))
		if !res.Success {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("all %d crawls failed", failed)
	}
	return nil
}
