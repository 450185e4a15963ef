package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/marmos91/fsbridge/internal/cli/output"
	"github.com/marmos91/fsbridge/pkg/polyfill"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/marmos91/fsbridge/pkg/transport/httpapi"
	"github.com/marmos91/fsbridge/pkg/transport/stream"
	"github.com/spf13/cobra"
)

var (
	browseNetwork string
	browseAddress string
	browseURL     string
	browseToken   string
	browsePath    string
	browseTimeout time.Duration
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Ask a running bridge for a directory and list it",
	Long: `Connect to a running bridge as a client, open the directory picker and
list the chosen directory. With --path, descend into a subdirectory of the
picked one first.

Examples:
  # Over the stream adapter
  fsbridge browse --address 127.0.0.1:7878

  # Over the HTTP adapter with a token from "fsbridge token"
  fsbridge browse --url http://127.0.0.1:7879 --token "$TOKEN" --path photos/2024`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&browseNetwork, "network", "tcp", "Stream network (tcp or unix)")
	browseCmd.Flags().StringVar(&browseAddress, "address", "127.0.0.1:7878", "Stream adapter address")
	browseCmd.Flags().StringVar(&browseURL, "url", "", "HTTP adapter base URL (overrides --address)")
	browseCmd.Flags().StringVar(&browseToken, "token", "", "Bearer token for the HTTP adapter")
	browseCmd.Flags().StringVar(&browsePath, "path", "", "Subdirectory of the picked directory to list")
	browseCmd.Flags().DurationVar(&browseTimeout, "timeout", 5*time.Minute, "Overall timeout, including the time spent in the picker")
}

func dialBridge(ctx context.Context) (transport.Caller, error) {
	if browseURL != "" {
		var opts []httpapi.ClientOption
		if browseToken != "" {
			opts = append(opts, httpapi.WithToken(browseToken))
		}
		return httpapi.NewClient(browseURL, opts...), nil
	}
	return stream.Dial(ctx, browseNetwork, browseAddress)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	caller, err := dialBridge(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}
	client := polyfill.NewClient(caller)
	defer client.Close()

	dir, err := client.ShowDirectoryPicker(ctx).Await(ctx)
	if err != nil {
		return err
	}

	dir, err = descend(ctx, dir, browsePath)
	if err != nil {
		return err
	}

	return printDirectory(cmd.OutOrStdout(), dir)
}

func descend(ctx context.Context, dir *polyfill.DirectoryHandle, rel string) (*polyfill.DirectoryHandle, error) {
	for _, name := range strings.Split(rel, "/") {
		if name == "" || name == "." {
			continue
		}
		next, err := dir.GetDirectoryHandle(ctx, name, polyfill.GetHandleOptions{}).Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		dir = next
	}
	return dir, nil
}

func printDirectory(w io.Writer, dir *polyfill.DirectoryHandle) error {
	fmt.Fprintf(w, "%s (%s)\n\n", dir.Name(), dir.URL())

	table := output.NewTableData("Name", "Kind", "Identifier")
	for name, h := range dir.All() {
		table.AddRow(name, string(h.Kind()), h.Identifier())
	}
	return output.PrintTable(w, table)
}
