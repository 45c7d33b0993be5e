package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing, then initializes the database
// and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configName()

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		config.ApplyEnv()
		r.config = config
		r.writePlain("✓ Created %s\n", configPath)
	}

	if cmd.Bool("vapid") && config.Push.VAPIDPrivateKey == "" {
		publicKey, privateKey, err := push.GenerateKeys()
		if err != nil {
			return err
		}
		config.Push.VAPIDPublicKey = publicKey
		config.Push.VAPIDPrivateKey = privateKey
		if err := shared.SaveConfig(configPath, config); err != nil {
			return err
		}
		r.writePlain("✓ Generated VAPID keys\n")
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.MigrationsStatus(db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	r.writePlain("✓ Database ready: %s (%d migrations)\n", config.Database.Path, len(statuses))
	if config.Credentials.SoundCloud.ClientID == "" {
		r.writePlainln("Next steps:")
		r.writePlain("1. Register an app at https://soundcloud.com/you/apps\n")
		r.writePlain("2. Set credentials.soundcloud.client_id and client_secret in %s\n", configPath)
		r.writePlain("3. Run 'moodtape serve --open'\n")
	}
	return nil
}
