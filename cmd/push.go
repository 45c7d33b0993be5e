package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PushVAPIDKeys generates a VAPID key pair, optionally saving it to the config file.
func (r *Runner) PushVAPIDKeys(ctx context.Context, cmd *cli.Command) error {
	publicKey, privateKey, err := push.GenerateKeys()
	if err != nil {
		return err
	}

	if cmd.Bool("save") {
		r.config.Push.VAPIDPublicKey = publicKey
		r.config.Push.VAPIDPrivateKey = privateKey
		if err := shared.SaveConfig(r.configName(), r.config); err != nil {
			return err
		}
		r.logger.Info("vapid keys saved", "path", r.configName())
		r.writePlain("✓ VAPID keys saved to %s\n", r.configName())
		return nil
	}

	r.writePlainHeader("VAPID keys")
	r.writePlain("public:  %s\n", publicKey)
	r.writePlain("private: %s\n", privateKey)
	r.writePlainln("Set them as push.vapid_public_key and push.vapid_private_key, or export %s and %s.",
		shared.EnvVAPIDPublicKey, shared.EnvVAPIDPrivateKey)
	return nil
}

// PushTest delivers a test notification to every device a user has subscribed.
func (r *Runner) PushTest(ctx context.Context, cmd *cli.Command) error {
	if r.push == nil && r.config.Push.VAPIDPrivateKey == "" {
		return fmt.Errorf("%w: configure VAPID keys with 'moodtape push vapid-keys --save'", shared.ErrMissingCredentials)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := findUser(repositories.NewUserRepository(db), cmd.String("user"))
	if err != nil {
		return err
	}

	n := push.Notification{Title: cmd.String("title"), Options: push.Options{Body: cmd.String("body")}}
	if n.Title == "" {
		n.Title = push.DefaultTitle
	}

	broadcaster := tasks.NewPushBroadcaster(
		r.pushSender(),
		repositories.NewPushSubscriptionRepository(db),
		tasks.BroadcastOpts{NumWorkers: int(cmd.Int("workers"))},
		r.logger,
	)

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progress)
	result, err := broadcaster.BroadcastToUser(ctx, progress, user.ID(), n)
	close(progress)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Push to %s", user.Name))
	r.writePlain("Sent: %d/%d\n", result.Sent, result.Total)
	if result.Failed > 0 {
		r.writePlain("Failed: %d (%d expired subscriptions removed)\n", result.Failed, result.Pruned)
	}
	return nil
}
