package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/opname/internal/service"
	"github.com/vbonduro/opname/internal/web"
)

var (
	rootCmd = &cobra.Command{
		Use:           "opname",
		Short:         "Energy audit submission and media store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove media directories of audits that no longer exist",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}

	migrateLegacyCmd = &cobra.Command{
		Use:   "migrate-legacy [snapshot.json]",
		Short: "Create a completed audit from a flat legacy snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateLegacy,
	}

	deleteAuditCmd = &cobra.Command{
		Use:   "delete-audit [audit-id]",
		Short: "Delete an audit, its rows and its media directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteAudit,
	}

	checkMediaCmd = &cobra.Command{
		Use:   "check-media [audit-id]",
		Short: "Report photo rows without files and files without rows",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckMedia,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateLegacyCmd, deleteAuditCmd, checkMediaCmd)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	server := web.NewServer(a.audits, a.migrator, a.sweeper, a.cfg.MaxUploadBytes, a.logger)
	if err := server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := a.sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runMigrateLegacy(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	snap, err := service.ParseSnapshot(f)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.migrator.Migrate(cmd.Context(), snap)
	if report != nil {
		if perr := printJSON(cmd, report); perr != nil {
			return perr
		}
	}
	return err
}

func runDeleteAudit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.audits.DeleteAudit(cmd.Context(), args[0]); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted audit %s\n", args[0])
	return err
}

func runCheckMedia(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gaps, err := a.audits.CheckMedia(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := printJSON(cmd, gaps); err != nil {
		return err
	}
	if len(gaps) > 0 {
		return fmt.Errorf("%d media consistency gaps in audit %s", len(gaps), args[0])
	}
	return nil
}
