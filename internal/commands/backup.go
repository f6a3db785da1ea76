package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolledger/ledger-api/internal/services"
)

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, restore and list snapshots",
	}
	cmd.AddCommand(newBackupExportCommand())
	cmd.AddCommand(newBackupRestoreCommand())
	cmd.AddCommand(newBackupListCommand())
	return cmd
}

func newBackupExportCommand() *cobra.Command {
	var out string
	var tables string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of the database to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			snapshot, err := a.svcs.Backup.Export(cmd.Context(), splitList(tables))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding snapshot: %w", err)
			}

			if out == "" {
				out = services.SnapshotFilename(snapshot.Metadata.CreatedAt)
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s written to %s\n", snapshot.Metadata.SnapshotID, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout (default: timestamped name in the working directory)")
	cmd.Flags().StringVar(&tables, "tables", "", "comma-separated tables to export (default: all)")
	return cmd
}

func newBackupRestoreCommand() *cobra.Command {
	var in string
	var tables string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace table contents with a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			if in == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("opening snapshot: %w", err)
				}
				defer f.Close()
				r = f
			}

			snapshot, err := services.DecodeSnapshot(r)
			if err != nil {
				return err
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.svcs.Backup.Restore(cmd.Context(), snapshot, services.RestoreOptions{Tables: splitList(tables)})
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "snapshot file to restore, - for stdin (required)")
	_ = cmd.MarkFlagRequired("in")
	cmd.Flags().StringVar(&tables, "tables", "", "comma-separated tables to restore (default: every known table in the snapshot)")
	return cmd
}

func newBackupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			files, err := a.store.ListBackups()
			if err != nil {
				return err
			}
			for _, file := range files {
				fmt.Fprintln(cmd.OutOrStdout(), a.store.GetFullPath(file))
			}
			return nil
		},
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
