// Package main is the Loomi CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/cli"
	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/server"
	"github.com/DekelUsach/Loomi-backend/internal/watcher"
	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/loomi/config.yaml"
	defaultServerURL  = "http://localhost:3000"
)

// loadConfig loads .env files, then the config at path. When path is the
// default, config.yaml in the current directory wins if present. When the
// default file does not exist either, built-in defaults plus the environment
// are used and the returned path is empty, so nothing is persisted.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, "", fmt.Errorf("load .env: %w", err)
	}
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyEnv(cfg)
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	if cfg.Log.File == "" {
		return utils.NewLogger(debug)
	}
	return utils.NewFileLogger(debug, utils.FileLogOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "import":
		err = runImport(args)
	case "upload":
		err = runUpload(args)
	case "ask":
		err = runAsk(args)
	case "quiz":
		err = runQuiz(args)
	case "progress":
		err = runProgress(args)
	case "status":
		err = runStatus(args)
	case "library":
		err = runLibrary(args)
	case "version", "--version", "-v":
		fmt.Printf("loomi version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := newLogger(cfg, debugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedPath), zap.Bool("debug", debugMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer components.Close()

	lib := watcher.New(components.Ingest, cfg.Library.Directories,
		watcher.WithExtensions(cfg.Library.Extensions),
		watcher.WithRecursive(cfg.Library.RecursiveOrDefault()),
		watcher.WithLogger(logger),
	)
	if err := lib.Start(ctx); err != nil {
		return fmt.Errorf("start library watcher: %w", err)
	}
	defer lib.Stop()
	lib.SyncExistingFiles()

	srv := server.NewServer(
		components.Ingest,
		components.QA,
		components.Tracker,
		components.Store,
		cfg,
		logger,
		server.WithLibraryWatcher(lib, resolvedPath),
		server.WithIndexStats(components.Index),
		server.WithImages(components.Blobs),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// runImport ingests local files or directories into the shared library
// without a running server.
func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: loomi import [flags] <file-or-dir>...")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg, cfg.Debug || *debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer components.Close()

	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			n, err := components.Ingest.ImportDirectory(ctx, path, *recursive)
			fmt.Printf("%s: %d new texts\n", path, n)
			if err != nil {
				return err
			}
			continue
		}
		res, err := components.Ingest.ImportLibraryFile(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if res.Skipped {
			fmt.Printf("%s: already in library as %d\n", path, res.LibraryTextID)
			continue
		}
		fmt.Printf("%s: library text %d, %d paragraphs\n", path, res.LibraryTextID, res.ParagraphCount)
	}
	return nil
}

// clientFlags registers the flags shared by commands that talk to a server.
type clientFlags struct {
	server *string
	token  *string
	owner  *string
	asJSON *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		server: fs.String("server", envOr("LOOMI_SERVER", defaultServerURL), "server URL"),
		token:  fs.String("token", os.Getenv("LOOMI_TOKEN"), "bearer token"),
		owner:  fs.String("owner", os.Getenv("LOOMI_OWNER"), "owner id when auth is disabled"),
		asJSON: fs.Bool("json", false, "output JSON"),
	}
}

func (f clientFlags) client() *cli.Client {
	c := cli.NewClient(*f.server)
	c.Token = *f.token
	c.Owner = *f.owner
	return c
}

func (f clientFlags) format() cli.OutputFormat {
	if *f.asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	cf := addClientFlags(fs)
	title := fs.String("title", "", "text title (derived from the content when empty)")
	follow := fs.Bool("follow", true, "print progress while the upload runs")
	_ = fs.Parse(reorderArgs(fs, args))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: loomi upload [flags] <file.pdf|file.docx>")
		os.Exit(1)
	}
	c := cf.client()
	ctx := context.Background()
	token := progress.NewToken()

	stopFollow := func() {}
	if *follow && !*cf.asJSON {
		stopFollow = followProgress(ctx, c, token, os.Stderr)
	}
	resp, err := c.Upload(ctx, fs.Arg(0), *title, token)
	stopFollow()
	if err != nil {
		return err
	}
	return cli.WriteUpload(os.Stdout, resp, cf.format())
}

// followProgress polls the token until stopped and prints percent changes.
func followProgress(ctx context.Context, c *cli.Client, token string, w io.Writer) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		last := -1
		seen := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			rec, err := c.Progress(ctx, token)
			if err != nil {
				continue
			}
			newLogs := rec.Logs[min(seen, len(rec.Logs)):]
			for _, l := range newLogs {
				fmt.Fprintf(w, "[%3d%%] %s\n", rec.Percent, l.Message)
			}
			seen = len(rec.Logs)
			if len(newLogs) == 0 && rec.Percent != last {
				fmt.Fprintf(w, "[%3d%%]\n", rec.Percent)
			}
			last = rec.Percent
			if rec.Terminal() {
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	cf := addClientFlags(fs)
	textID := fs.Int64("text", 0, "text id to ask about")
	library := fs.Bool("library", false, "the id names a shared library text")
	_ = fs.Parse(reorderArgs(fs, args))
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *textID <= 0 || question == "" {
		fmt.Fprintln(os.Stderr, "Usage: loomi ask [-library] -text <id> <question>")
		os.Exit(1)
	}
	resp, err := cf.client().Ask(context.Background(), *textID, *library, question)
	if err != nil {
		return err
	}
	return cli.WriteAnswer(os.Stdout, resp, cf.format())
}

func runQuiz(args []string) error {
	fs := flag.NewFlagSet("quiz", flag.ExitOnError)
	cf := addClientFlags(fs)
	textID := fs.Int64("text", 0, "stored text id")
	library := fs.Bool("library", false, "the id names a shared library text")
	file := fs.String("file", "", "plain text file to build the quiz from")
	_ = fs.Parse(args)
	var raw string
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		raw = string(data)
	}
	if *textID <= 0 && raw == "" {
		fmt.Fprintln(os.Stderr, "Usage: loomi quiz ([-library] -text <id> | -file <path>)")
		os.Exit(1)
	}
	resp, err := cf.client().Quiz(context.Background(), *textID, *library, raw)
	if err != nil {
		return err
	}
	return cli.WriteQuiz(os.Stdout, resp, cf.format())
}

func runProgress(args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	cf := addClientFlags(fs)
	logs := fs.Int("logs", 10, "number of recent log lines to show (0 = all)")
	_ = fs.Parse(reorderArgs(fs, args))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: loomi progress [flags] <token>")
		os.Exit(1)
	}
	rec, err := cf.client().Progress(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return cli.WriteProgress(os.Stdout, rec, cf.format(), *logs)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cf := addClientFlags(fs)
	_ = fs.Parse(args)
	status, err := cf.client().Status(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteStatus(os.Stdout, status, cf.format())
}

func runLibrary(args []string) error {
	fs := flag.NewFlagSet("library", flag.ExitOnError)
	cf := addClientFlags(fs)
	_ = fs.Parse(reorderArgs(fs, args))
	c := cf.client()
	ctx := context.Background()
	switch {
	case fs.NArg() == 1 && fs.Arg(0) == "list":
		dirs, err := c.Directories(ctx)
		if err != nil {
			return err
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
		return nil
	case fs.NArg() == 2 && fs.Arg(0) == "add":
		abs, err := filepath.Abs(fs.Arg(1))
		if err != nil {
			return err
		}
		if err := c.AddDirectory(ctx, abs); err != nil {
			return err
		}
		fmt.Printf("Watching %s\n", abs)
		return nil
	case fs.NArg() == 2 && fs.Arg(0) == "remove":
		abs, err := filepath.Abs(fs.Arg(1))
		if err != nil {
			return err
		}
		if err := c.RemoveDirectory(ctx, abs); err != nil {
			return err
		}
		fmt.Printf("Stopped watching %s\n", abs)
		return nil
	}
	fmt.Fprintln(os.Stderr, "Usage: loomi library [flags] list | add <dir> | remove <dir>")
	os.Exit(1)
	return nil
}

// reorderArgs moves flags ahead of positional arguments so that
// "loomi ask -text 3 why?" and "loomi ask why? -text 3" parse the same.
// Boolean flags never consume the following argument.
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(a, "-") || a == "-" {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Loomi - document ingestion and reading companion

Usage:
  loomi server   [-config path] [-debug]        run the HTTP API
  loomi import   [-config path] <file|dir>...   import files into the shared library
  loomi upload   [-title t] <file>              upload a document to a running server
  loomi ask      [-library] -text <id> <q>      ask about an uploaded text
  loomi quiz     -text <id> | -file <path>      generate a comprehension quiz
  loomi progress <token>                        show upload progress
  loomi status                                  show server status
  loomi library  list | add <dir> | remove <dir>
  loomi version

ask and quiz take -library when the id names a shared library text.
Client commands accept -server (LOOMI_SERVER, default %s),
-token (LOOMI_TOKEN), -owner (LOOMI_OWNER) and -json.
`, defaultServerURL)
}
