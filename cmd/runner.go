package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/mailer"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/services"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	soundcloud *services.SoundCloudService
	push       push.Sender
	deliverer  mailer.Deliverer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// SoundCloud, Push and Deliverer are built from Config on first use when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	SoundCloud *services.SoundCloudService
	Push       push.Sender
	Deliverer  mailer.Deliverer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		soundcloud: opts.SoundCloud,
		push:       opts.Push,
		deliverer:  opts.Deliverer,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, migrateCommand, pushCommand, mailCommand, logsCommand, playerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by every command.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// connect opens the configured database without touching its schema.
func (r *Runner) connect() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := r.connect()
	if err != nil {
		return nil, err
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// soundCloudService builds the SoundCloud client from the configured credentials.
func (r *Runner) soundCloudService() (*services.SoundCloudService, error) {
	if r.soundcloud != nil {
		return r.soundcloud, nil
	}

	svc, err := services.NewSoundCloudService(r.config.Credentials.SoundCloud.Map(), r.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: set credentials.soundcloud in %s or %s", err, r.configName(), shared.EnvSoundCloudClientID)
	}
	r.soundcloud = svc
	return svc, nil
}

func (r *Runner) pushSender() push.Sender {
	if r.push == nil {
		r.push = push.NewSender(r.config.Push, r.logger)
	}
	return r.push
}

func (r *Runner) mailer() *mailer.Mailer {
	if r.deliverer == nil {
		r.deliverer = mailer.NewDeliverer(r.config.Credentials.Resend.APIKey, r.logger)
	}
	return mailer.New(r.deliverer, r.config.Credentials.Resend.From, r.config.Server.BaseURL, r.logger)
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// findUser looks ref up as an email address when it contains "@", and as a user ID otherwise.
func findUser(users *repositories.UserRepository, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: user", shared.ErrMissingArgument)
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = users.GetByEmail(ref)
	} else {
		user, err = users.Get(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", ref, err)
	}
	return user, nil
}

// printProgress writes each update's message until progress is closed. The returned channel closes
// once every update has been written.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.PruneSubscriptions:
				r.writePlain("   🧹 %s\n", update.Message)
			case tasks.FindUsers:
				r.writePlain("🔍 %s\n", update.Message)
			default:
				if update.Step == 0 {
					r.writePlain("📤 %s\n", update.Message)
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			}
		}
	}()
	return done
}
