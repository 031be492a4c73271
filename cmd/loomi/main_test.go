package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/config"
)

func TestReorderArgs(t *testing.T) {
	newFS := func() *flag.FlagSet {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Int64("text", 0, "")
		fs.Bool("json", false, "")
		fs.String("server", "", "")
		return fs
	}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"flags after question", []string{"¿quién", "es?", "-text", "3"}, []string{"-text", "3", "¿quién", "es?"}},
		{"flags first unchanged", []string{"-text", "3", "hola"}, []string{"-text", "3", "hola"}},
		{"bool flag keeps next positional", []string{"-json", "hola", "-text", "2"}, []string{"-json", "-text", "2", "hola"}},
		{"flag with equals", []string{"hola", "--server=http://x"}, []string{"--server=http://x", "hola"}},
		{"double dash", []string{"-text", "1", "--", "-no-es-flag"}, []string{"-text", "1", "-no-es-flag"}},
		{"empty", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(newFS(), tt.args)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("reorderArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestReorderArgs_parses(t *testing.T) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	text := fs.Int64("text", 0, "")
	if err := fs.Parse(reorderArgs(fs, []string{"por", "qué", "-text", "12"})); err != nil {
		t.Fatal(err)
	}
	if *text != 12 || fs.NArg() != 2 {
		t.Errorf("text=%d args=%v", *text, fs.Args())
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "loomi.yaml")
	content := `
server:
  port: 8088
storage:
  database_path: "./data/loomi.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path: got %q", resolved)
	}
	if cfg.Server.Port != 8088 && os.Getenv("PORT") == "" {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if want := filepath.Join(dir, "data", "loomi.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database path: got %q, want %q", cfg.Storage.DatabasePath, want)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	content := `
debug: true
server:
  port: 8081
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != filepath.Join(dir, "config.yaml") {
		t.Errorf("resolved path: got %q", resolved)
	}
	if !cfg.Debug {
		t.Error("expected debug from cwd config")
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	chdir(t, t.TempDir())
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path should be empty, got %q", resolved)
	}
	if cfg.Server.MaxUploadMB != 25 || cfg.Extraction.Language != "spa" {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
}

func TestLoadConfig_envFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	cfg, _, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.JWTSecret != "from-dotenv" {
		t.Errorf("jwt secret: got %q", cfg.Auth.JWTSecret)
	}
}

func TestInitializeComponents_sqlite(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.LLM.APIKey = ""
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 32
	cfg.Storage.DatabaseURL = ""
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "loomi.db")
	cfg.Storage.BlobDir = filepath.Join(dir, "images")
	cfg.Storage.SpillDir = filepath.Join(dir, "spill")

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Store == nil || c.Index == nil || c.Ingest == nil || c.QA == nil || c.Tracker == nil {
		t.Fatalf("missing component: %+v", c)
	}
	counts, err := c.Store.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts.LibraryTexts != 0 {
		t.Errorf("fresh store should be empty: %+v", counts)
	}
	ans := c.QA.Ask(context.Background(), "1", "¿Quién?")
	if !ans.Degraded {
		t.Errorf("answer without texts or model should be degraded: %+v", ans)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
