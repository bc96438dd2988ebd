package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/account"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/reconcile"
)

func dashboardCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Keep this device's patient records reconciled with the sync server",
		Long: "Runs a reconciliation pass every RECONCILE_INTERVAL and prints the merged " +
			"patient records. Doctors and the administrator only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			if u.UserType == account.UserTypePatient {
				return fmt.Errorf("the dashboard is for doctors and the administrator")
			}

			out := cmd.OutOrStdout()
			show := func(res reconcile.Result, err error) {
				if err != nil {
					fmt.Fprintf(out, "reconciliation error: %v\n", err)
				}
				fmt.Fprintf(out, "\n%s  pulled=%d pushed=%d failed=%d healed=%d\n",
					time.Now().Format("15:04:05"), res.Pulled, res.Pushed, res.PushFailed, res.Healed)
				printRecords(out, res.Records, time.Now())
			}

			r := d.reconciler()
			if once {
				show(r.Run(cmd.Context()))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched, err := reconcile.NewScheduler(r, d.cfg.ReconcileInterval, d.logger, show)
			if err != nil {
				return err
			}
			go d.outbox.Run(ctx, d.cfg.OutboxFlushInterval)
			sched.Start(ctx)
			d.logger.Info().Dur("interval", d.cfg.ReconcileInterval).Str("user_id", u.ID).Msg("dashboard running")

			<-ctx.Done()
			sched.Stop()
			d.logger.Info().Msg("dashboard stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single reconciliation pass and exit")
	return cmd
}
