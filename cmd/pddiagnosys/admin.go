package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/account"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator actions (sign in as admin first)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "doctors",
		Short: "List registered doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			if _, err := d.requireAdmin(cmd.Context()); err != nil {
				return err
			}
			doctors, err := d.portal.Doctors(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tREGISTERED")
			for _, doc := range doctors {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", doc.ID, doc.Name, doc.Email, doc.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	})

	var patientName string
	deletePatient := &cobra.Command{
		Use:   "delete-patient <patient-id>",
		Short: "Delete a patient everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			if _, err := d.requireAdmin(cmd.Context()); err != nil {
				return err
			}
			synced, err := d.portal.DeletePatient(cmd.Context(), args[0], patientName)
			if err != nil {
				return err
			}
			reportDelete(cmd, "patient", args[0], synced)
			return nil
		},
	}
	deletePatient.Flags().StringVar(&patientName, "name", "", "patient name, for the server's delete log")
	cmd.AddCommand(deletePatient)

	var doctorName string
	deleteDoctor := &cobra.Command{
		Use:   "delete-doctor <doctor-id>",
		Short: "Delete a doctor and their sign-in codes everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			if _, err := d.requireAdmin(cmd.Context()); err != nil {
				return err
			}
			synced, err := d.portal.DeleteDoctor(cmd.Context(), args[0], doctorName)
			if err != nil {
				return err
			}
			reportDelete(cmd, "doctor", args[0], synced)
			return nil
		},
	}
	deleteDoctor.Flags().StringVar(&doctorName, "name", "", "doctor name, for the server's delete log")
	cmd.AddCommand(deleteDoctor)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete-qrcode <qr-id>",
		Short: "Delete a doctor sign-in code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			if _, err := d.requireAdmin(cmd.Context()); err != nil {
				return err
			}
			synced, err := d.portal.DeleteQRCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reportDelete(cmd, "qr code", args[0], synced)
			return nil
		},
	})

	return cmd
}

func reportDelete(cmd *cobra.Command, kind, id string, synced bool) {
	if synced {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", kind, id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s locally; the server will be told when reachable\n", kind, id)
}

func qrcodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qrcode",
		Short: "Manage the signed-in doctor's sign-in codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Generate a new sign-in code",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			if u.UserType != account.UserTypeDoctor {
				return fmt.Errorf("only doctors have sign-in codes")
			}
			qr, err := d.qrcodes.Create(cmd.Context(), u.ID, u.Name, u.Email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", qr.QRCode)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sign-in codes (all codes for the administrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			u, err := d.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			codes, err := d.qrcodes.List(cmd.Context(), u.ID)
			if u.UserType == account.UserTypeAdmin {
				codes, err = d.qrcodes.All(cmd.Context())
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDOCTOR\tCODE\tLAST SIGN-IN")
			for _, qr := range codes {
				last := "never"
				if !qr.LastSignIn.IsZero() {
					last = qr.LastSignIn.Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", qr.ID, qr.DoctorName, qr.QRCode, last)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and deliver queued sync events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List events waiting for delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			pending, err := d.outbox.Pending()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "outbox empty")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
			for _, e := range pending {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.ID, e.Event.Type, e.Attempts, e.NextAttemptAt.Local().Format(time.DateTime), e.LastError)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver queued events now, ignoring backoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice()
			if err != nil {
				return err
			}
			res, err := d.outbox.Retry(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, dropped %d, %d remaining\n", len(res.Delivered), len(res.Dropped), res.Remaining)
			return nil
		},
	})

	return cmd
}
