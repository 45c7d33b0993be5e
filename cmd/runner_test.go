package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/mailer"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/shared"
	tu "github.com/desertthunder/moodtape/internal/testing"
	"github.com/urfave/cli/v3"
)

// recordingSender accepts every push and remembers the endpoints.
type recordingSender struct {
	mu        sync.Mutex
	endpoints []string
}

func (s *recordingSender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, sub.Endpoint)
	return nil
}

// newTestRunner returns a runner backed by a database file in a temp dir, writing to the returned buffer.
func newTestRunner(t *testing.T, opts RunnerOpts) (*Runner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "moodtape.db")

	output := &bytes.Buffer{}
	opts.Config = config
	opts.Output = output
	opts.Logger = log.New(io.Discard)
	if opts.ConfigPath == "" {
		opts.ConfigPath = filepath.Join(dir, "config.toml")
	}
	return NewRunner(opts), output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{
		Name:      "moodtape",
		Commands:  r.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"moodtape"}, args...))
}

// seed opens the runner's database and hands it to fn.
func seed(t *testing.T, r *Runner, fn func(users *repositories.UserRepository, logs *repositories.EmotionLogRepository, subs *repositories.PushSubscriptionRepository)) {
	t.Helper()

	db, err := r.openDatabase()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	fn(repositories.NewUserRepository(db), repositories.NewEmotionLogRepository(db), repositories.NewPushSubscriptionRepository(db))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			sender := &recordingSender{}
			deliverer := mailer.NewRecordingDeliverer(nil)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Push:       sender,
				Deliverer:  deliverer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.pushSender() != sender {
				t.Error("expected push sender to be set")
			}
			if runner.deliverer != deliverer {
				t.Error("expected deliverer to be set")
			}
			if runner.configName() != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configName())
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.configName() != "config.toml" {
				t.Errorf("expected default config name, got %s", runner.configName())
			}
		})

		t.Run("mailer falls back to logging without an api key", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			runner.config.Credentials.Resend.APIKey = ""

			runner.mailer()
			if _, ok := runner.deliverer.(*mailer.RecordingDeliverer); !ok {
				t.Errorf("expected a recording deliverer, got %T", runner.deliverer)
			}
		})

		t.Run("soundcloud requires credentials", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			runner.config.Credentials.SoundCloud.ClientID = ""

			if _, err := runner.soundCloudService(); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make(map[string]bool)
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "serve", "migrate", "push", "mail", "logs", "player"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	runner, output := newTestRunner(t, RunnerOpts{ConfigPath: filepath.Join(dir, "config.toml")})

	if err := run(t, runner, "setup"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, filepath.Join(dir, "moodtape.db"))

	config, err := shared.LoadConfig(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if config.Push.VAPIDPublicKey == "" || config.Push.VAPIDPrivateKey == "" {
		t.Error("expected setup to generate vapid keys")
	}

	for _, want := range []string{"Created", "Generated VAPID keys", "Database ready"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, output.String())
		}
	}

	t.Run("keeps an existing config", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if strings.Contains(output.String(), "Created") || strings.Contains(output.String(), "VAPID") {
			t.Errorf("expected only the database step, got:\n%s", output.String())
		}
	})
}

func TestMigrate(t *testing.T) {
	runner, output := newTestRunner(t, RunnerOpts{})

	status := func(t *testing.T) []migrationView {
		t.Helper()
		output.Reset()
		if err := run(t, runner, "migrate", "status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		var views []migrationView
		if err := json.Unmarshal(output.Bytes(), &views); err != nil {
			t.Fatalf("invalid status JSON: %v\n%s", err, output.String())
		}
		return views
	}

	if err := run(t, runner, "migrate", "up"); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	views := status(t)
	if len(views) == 0 {
		t.Fatal("expected migrations")
	}
	for _, v := range views {
		if !v.Applied || v.AppliedAt == "" {
			t.Errorf("migration %d not applied", v.Version)
		}
	}

	output.Reset()
	if err := run(t, runner, "migrate", "rollback"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	last := views[len(views)-1]
	if !strings.Contains(output.String(), last.Name) {
		t.Errorf("expected rollback of %s, got %q", last.Name, output.String())
	}

	views = status(t)
	if views[len(views)-1].Applied {
		t.Error("expected last migration to be pending after rollback")
	}

	t.Run("table", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "migrate", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(strings.ToLower(output.String()), "1 pending") {
			t.Errorf("expected pending count in table:\n%s", output.String())
		}
	})
}

func TestMailTest(t *testing.T) {
	deliverer := mailer.NewRecordingDeliverer(nil)
	runner, output := newTestRunner(t, RunnerOpts{Deliverer: deliverer})

	t.Run("dry run", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "mail", "test", "--to", "ada@example.com", "--name", "Ada", "--dry-run"); err != nil {
			t.Fatalf("mail test failed: %v", err)
		}
		if !strings.Contains(output.String(), "Welcome to moodtape") || !strings.Contains(output.String(), "ada@example.com") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
		if n := len(deliverer.Messages()); n != 0 {
			t.Errorf("dry run delivered %d messages", n)
		}
	})

	t.Run("reminder", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "mail", "test", "--to", "ada@example.com", "--kind", "reminder"); err != nil {
			t.Fatalf("mail test failed: %v", err)
		}
		msgs := deliverer.Messages()
		if len(msgs) != 1 || msgs[0].Subject != "How did today sound?" {
			t.Fatalf("expected one reminder, got %+v", msgs)
		}
		if !strings.Contains(output.String(), "only logged") {
			t.Errorf("expected a note that nothing was sent, got %q", output.String())
		}
	})

	tests := []struct {
		name string
		args []string
	}{
		{"unknown kind", []string{"--to", "ada@example.com", "--kind", "farewell"}},
		{"invalid address", []string{"--to", "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(t, runner, append([]string{"mail", "test"}, tt.args...)...)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestPushCommands(t *testing.T) {
	t.Run("vapid keys", func(t *testing.T) {
		runner, output := newTestRunner(t, RunnerOpts{})

		if err := run(t, runner, "push", "vapid-keys"); err != nil {
			t.Fatalf("vapid-keys failed: %v", err)
		}
		if !strings.Contains(output.String(), "public:") || !strings.Contains(output.String(), "private:") {
			t.Errorf("expected both keys in output:\n%s", output.String())
		}

		if err := run(t, runner, "push", "vapid-keys", "--save"); err != nil {
			t.Fatalf("vapid-keys --save failed: %v", err)
		}
		config, err := shared.LoadConfig(runner.configName())
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if config.Push.VAPIDPrivateKey == "" || config.Push.VAPIDPrivateKey != runner.config.Push.VAPIDPrivateKey {
			t.Error("expected saved keys to match the runner's config")
		}
	})

	t.Run("test without keys", func(t *testing.T) {
		runner, _ := newTestRunner(t, RunnerOpts{})
		runner.config.Push.VAPIDPrivateKey = ""

		err := run(t, runner, "push", "test", "--user", "ada@example.com")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("test", func(t *testing.T) {
		sender := &recordingSender{}
		runner, output := newTestRunner(t, RunnerOpts{Push: sender})

		seed(t, runner, func(users *repositories.UserRepository, _ *repositories.EmotionLogRepository, subs *repositories.PushSubscriptionRepository) {
			ada := models.NewUser(0, "ada@example.com", "Ada")
			if err := users.Create(ada); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
			for _, endpoint := range []string{"https://push.example.com/a", "https://push.example.com/b"} {
				if err := subs.Create(models.NewPushSubscription(0, ada.ID(), endpoint, "p256dh-key", "auth-key")); err != nil {
					t.Fatalf("failed to subscribe: %v", err)
				}
			}
		})

		if err := run(t, runner, "push", "test", "--user", "ada@example.com", "--title", "Hi"); err != nil {
			t.Fatalf("push test failed: %v", err)
		}
		if len(sender.endpoints) != 2 {
			t.Errorf("expected 2 deliveries, got %v", sender.endpoints)
		}
		if !strings.Contains(output.String(), "Sent: 2/2") {
			t.Errorf("expected summary in output:\n%s", output.String())
		}

		if err := run(t, runner, "push", "test", "--user", "grace@example.com"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown user, got %v", err)
		}
	})
}

func TestLogsExport(t *testing.T) {
	runner, output := newTestRunner(t, RunnerOpts{})

	var adaID string
	seed(t, runner, func(users *repositories.UserRepository, logs *repositories.EmotionLogRepository, _ *repositories.PushSubscriptionRepository) {
		ada := models.NewUser(0, "ada@example.com", "Ada")
		grace := models.NewUser(0, "grace@example.com", "Grace")
		for _, u := range []*models.User{ada, grace} {
			if err := users.Create(u); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}
		adaID = ada.ID()

		for i, e := range []models.Emotion{models.Joy, models.Calm, models.Nostalgia} {
			entry := models.NewEmotionLog(0, ada.ID(), e, 3)
			entry.LoggedAt = time.Date(2024, 3, 10+i, 12, 0, 0, 0, time.Local)
			if err := logs.Create(entry); err != nil {
				t.Fatalf("failed to create log: %v", err)
			}
		}
	})

	t.Run("single user csv", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "export")
		output.Reset()

		err := run(t, runner, "logs", "export", "--user", "ada@example.com", "--format", "csv", "--output", out,
			"--since", "2024-03-11")
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}

		tu.AssertDirExists(t, out)
		tu.AssertFileExists(t, filepath.Join(out, "export_manifest.json"))

		csv := tu.MustReadFile(t, filepath.Join(out, adaID+".csv"))
		if strings.Contains(csv, "joy") || !strings.Contains(csv, "nostalgia") {
			t.Errorf("expected entries since 2024-03-11 only:\n%s", csv)
		}
		if !strings.Contains(output.String(), "Exported: 1/1") {
			t.Errorf("expected summary in output:\n%s", output.String())
		}
	})

	t.Run("every user", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "all")
		output.Reset()

		if err := run(t, runner, "logs", "export", "--output", out); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.Contains(output.String(), "Exported: 2/2") {
			t.Errorf("expected both users exported:\n%s", output.String())
		}
	})

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad format", []string{"--format", "xml"}, shared.ErrInvalidArgument},
		{"bad date", []string{"--since", "March"}, shared.ErrInvalidArgument},
		{"unknown user", []string{"--user", "nobody@example.com"}, shared.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"logs", "export", "--output", t.TempDir()}, tt.args...)
			if err := run(t, runner, args...); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyAddr(t *testing.T) {
	tests := []struct {
		addr    string
		host    string
		port    int
		wantErr bool
	}{
		{addr: "0.0.0.0:8080", host: "0.0.0.0", port: 8080},
		{addr: ":9000", host: "", port: 9000},
		{addr: "localhost", wantErr: true},
		{addr: "localhost:http", wantErr: true},
		{addr: "localhost:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cfg := shared.ServerConfig{Host: "127.0.0.1", Port: 3000}
			err := applyAddr(&cfg, tt.addr)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				if cfg.Port != 3000 {
					t.Error("config changed on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Host != tt.host || cfg.Port != tt.port {
				t.Errorf("got %s:%d, want %s:%d", cfg.Host, cfg.Port, tt.host, tt.port)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	if got, err := parseDate(""); err != nil || !got.IsZero() {
		t.Errorf("parseDate(\"\") = %v, %v", got, err)
	}

	got, err := parseDate(" 2024-03-11 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := parseDate("11/03/2024"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
