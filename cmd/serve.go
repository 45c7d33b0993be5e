package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/server"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Serve runs the web service until interrupted.
//
// With reminders enabled the daily reminder job runs in the same process.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if addr := cmd.String("addr"); addr != "" {
		if err := applyAddr(&r.config.Server, addr); err != nil {
			return err
		}
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	soundcloud, err := r.soundCloudService()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	mail := r.mailer()
	srv, err := server.New(server.Deps{
		Config:   r.config,
		DB:       db,
		Provider: soundcloud,
		Catalog:  soundcloud,
		Push:     r.pushSender(),
		Mailer:   mail,
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}

	if cmd.Bool("reminders") || r.config.Reminders.Enabled {
		subs := repositories.NewPushSubscriptionRepository(db)
		broadcaster := tasks.NewPushBroadcaster(r.pushSender(), subs, tasks.BroadcastOpts{}, r.logger)
		reminders, err := tasks.NewReminders(
			r.config.Reminders.Schedule,
			repositories.NewEmotionLogRepository(db),
			subs,
			broadcaster,
			mail,
			r.logger,
		)
		if err != nil {
			return err
		}
		if err := reminders.Start(ctx); err != nil {
			return err
		}
		defer reminders.Stop()
		r.writePlain("Reminders scheduled, next %s\n", humanize.Time(reminders.Next()))
	}

	signIn := strings.TrimRight(r.config.Server.BaseURL, "/") + "/auth/soundcloud"
	r.writePlain("moodtape listening on %s\n", r.config.Server.Addr())
	r.writePlain("Sign in at %s\n", signIn)

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(signIn); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	return srv.ListenAndServe(ctx)
}

// applyAddr overrides the configured host and port with addr.
func applyAddr(cfg *shared.ServerConfig, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: addr %q: %v", shared.ErrInvalidArgument, addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: addr %q has an invalid port", shared.ErrInvalidArgument, addr)
	}

	cfg.Host = host
	cfg.Port = port
	return nil
}
