package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/fsbridge/internal/cli/output"
	"github.com/marmos91/fsbridge/pkg/config"
	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory through the configured driver",
	Long: `List the immediate children of a directory as the bridge would see them,
using the driver from the configuration file.

Examples:
  fsbridge ls /
  FSBRIDGE_DRIVER_TYPE=s3 fsbridge ls /photos`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file through the configured driver",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

func loadDriver(ctx context.Context) (driver.Driver, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	return config.CreateDriver(ctx, &cfg.Driver)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir := "/"
	if len(args) == 1 {
		dir = args[0]
	}

	drv, err := loadDriver(ctx)
	if err != nil {
		return err
	}
	return listDirectory(ctx, cmd.OutOrStdout(), drv, dir)
}

func listDirectory(ctx context.Context, w io.Writer, drv driver.Driver, dir string) error {
	entries, err := drv.List(ctx, driver.Clean(dir))
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	table := output.NewTableData("Name", "Kind", "Modified")
	for _, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "directory"
		}
		modified := "-"
		if t, err := drv.ModificationTime(ctx, e.Path); err == nil && !t.IsZero() {
			modified = t.Local().Format(time.DateTime)
		}
		table.AddRow(e.Name, kind, modified)
	}
	return output.PrintTable(w, table)
}

func runCat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	drv, err := loadDriver(ctx)
	if err != nil {
		return err
	}

	data, err := drv.Read(ctx, driver.Clean(args[0]))
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
