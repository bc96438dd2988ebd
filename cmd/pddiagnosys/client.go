package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/account"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/diagnosis"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the sync server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			h, err := d.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync server at %s: %w", d.client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", d.client.BaseURL(), h.Status, h.Timestamp.Format(time.RFC3339))
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var email, password, name, userType string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient or doctor account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.accountSvc.Register(cmd.Context(), email, password, name, account.UserType(userType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s %s (%s)\n", u.UserType, u.Name, u.ID)
			if u.UserType == account.UserTypeDoctor {
				if codes, err := d.qrcodes.List(cmd.Context(), u.ID); err == nil && len(codes) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "sign-in code: %s\n", codes[len(codes)-1].QRCode)
				}
			}
			note(cmd.OutOrStdout(), d.pendingNote())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&userType, "type", string(account.UserTypePatient), "patient or doctor")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("name")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password, userType string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.accountSvc.Login(cmd.Context(), email, password, account.UserType(userType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.Name, u.UserType)
			note(cmd.OutOrStdout(), d.pendingNote())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&userType, "type", string(account.UserTypePatient), "patient, doctor or admin")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func loginQRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login-qr <code>",
		Short: "Sign in as a doctor with a scanned sign-in code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.accountSvc.LoginWithQRCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.Name, u.UserType)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.accountSvc.Logout(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nobody was signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed out %s\n", u.Name)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
}

func analyzeCmd() *cobra.Command {
	var reportDir string
	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Run the expression analysis on a set of images",
		Args:  cobra.RangeArgs(1, diagnosis.RequiredImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			u, err := d.currentUser(ctx)
			if err != nil {
				return err
			}

			summary, err := diagnosis.AnalyzeImages(args, &diagnosis.PatientInfo{
				Name:     u.Name,
				Email:    u.Email,
				UserType: string(u.UserType),
			})
			if err != nil {
				return err
			}
			if _, err := d.portal.RecordAnalysis(ctx, *u); err != nil {
				return err
			}

			now := time.Now()
			report := diagnosis.Report(summary, now)
			if reportDir == "" {
				fmt.Fprint(cmd.OutOrStdout(), report)
			} else {
				path := filepath.Join(reportDir, diagnosis.ReportFilename(now))
				if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%.1f%%), report written to %s\n", summary.Diagnosis.Label(), summary.Confidence, path)
			}
			note(cmd.OutOrStdout(), d.pendingNote())
			return nil
		},
	}
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "write the report to this directory instead of stdout")
	return cmd
}

func bookAppointmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book-appointment",
		Short: "Ask for an appointment with a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			u, err := d.currentUser(ctx)
			if err != nil {
				return err
			}
			synced, err := d.portal.BookAppointment(ctx, *u)
			if err != nil {
				return err
			}
			if synced {
				fmt.Fprintln(cmd.OutOrStdout(), "appointment requested")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "appointment requested; saved locally, will sync later")
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func note(w io.Writer, msg string) {
	if msg != "" {
		fmt.Fprintln(w, msg)
	}
}

// printRecords writes records as a table.
func printRecords(w io.Writer, records []patient.Record, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tANALYSES\tLAST LOGIN")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s ago\n",
			r.ID, r.PatientName, r.PatientEmail, r.Status, r.TotalAnalyses,
			now.Sub(r.LastLogin).Round(time.Second))
	}
	tw.Flush()
}
