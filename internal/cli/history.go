// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jeranaias/drchat/internal/export"
	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/storage"
	"github.com/jeranaias/drchat/internal/util"
)

const (
	defaultListLimit = 20
	shortIDLength    = 8
	titleColumnWidth = 48
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse and export past research conversations",
		Long: `Browse and export past research conversations.

Conversations are saved after every answered question. IDs can be
abbreviated to any unique prefix.`,
	}
	cmd.AddCommand(
		newHistoryListCmd(a),
		newHistoryShowCmd(a),
		newHistoryExportCmd(a),
		newHistoryDeleteCmd(a),
		newHistorySearchCmd(a),
	)
	return cmd
}

// withStore opens the history database for the duration of fn.
func (a *app) withStore(fn func(ctx context.Context, store *storage.Store) error) error {
	store, err := a.openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return fn(ctx, store)
}

// =============================================================================
// LIST AND SEARCH
// =============================================================================

func newHistoryListCmd(a *app) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(ctx context.Context, store *storage.Store) error {
				metas, err := store.List(ctx, limit)
				if jsonOut {
					return writeJSONResult(cmd.OutOrStdout(), "history list", metas, err)
				}
				if err != nil {
					return err
				}
				if len(metas) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet. Start one with: drchat chat")
					return nil
				}
				writeConversationTable(cmd.OutOrStdout(), metas)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "maximum conversations to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

func newHistorySearchCmd(a *app) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find conversations whose title or messages contain term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(ctx context.Context, store *storage.Store) error {
				metas, err := store.Search(ctx, args[0], limit)
				if jsonOut {
					return writeJSONResult(cmd.OutOrStdout(), "history search", metas, err)
				}
				if err != nil {
					return err
				}
				if len(metas) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No conversations match %q.\n", args[0])
					return nil
				}
				writeConversationTable(cmd.OutOrStdout(), metas)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "maximum results (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

// writeConversationTable prints conversation metadata as an aligned table.
func writeConversationTable(w io.Writer, metas []storage.ConversationMeta) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Title", "Messages", "Updated"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")

	for _, m := range metas {
		table.Append([]string{
			shortID(m.ID),
			util.TruncateWidth(m.Title, titleColumnWidth),
			strconv.Itoa(m.MessageCount),
			util.FormatAge(m.UpdatedAt),
		})
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// =============================================================================
// SHOW AND EXPORT
// =============================================================================

func newHistoryShowCmd(a *app) *cobra.Command {
	var details, jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(ctx context.Context, store *storage.Store) error {
				conv, err := store.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return a.showConversation(cmd.OutOrStdout(), conv, details, jsonOut)
			})
		},
	}
	cmd.Flags().BoolVarP(&details, "details", "d", false, "include research details")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

// showConversation prints conv as Markdown, rendered when stdout is a
// terminal, or as the JSON export document.
func (a *app) showConversation(w io.Writer, conv *model.Conversation, details, jsonOut bool) error {
	opts := export.DefaultOptions()
	opts.IncludeDetails = details

	var exporter export.Exporter = export.NewMarkdownExporter(opts)
	if jsonOut {
		exporter = export.NewJSONExporter(opts)
	}
	data, err := exporter.Export(conv)
	if err != nil {
		return err
	}

	if r := a.answerRenderer(); r != nil && !jsonOut {
		fmt.Fprintln(w, r.Markdown(string(data)))
		return nil
	}
	_, err = w.Write(data)
	return err
}

func newHistoryExportCmd(a *app) *cobra.Command {
	var (
		format  string
		output  string
		dir     string
		open    bool
		details bool
		theme   string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation to Markdown, JSON or HTML",
		Example: `  drchat history export 3f2a
  drchat history export 3f2a --format html --open
  drchat history export 3f2a -f json -o tides.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputPath = output
			if dir != "" {
				opts.OutputDir = dir
			}
			opts.OpenAfterExport = open
			opts.IncludeDetails = details
			if theme != "" {
				opts.Theme = theme
			}
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}

			return a.withStore(func(ctx context.Context, store *storage.Store) error {
				conv, err := store.Load(ctx, args[0])
				if err != nil {
					return err
				}
				path, err := export.ExportToFile(conv, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Exported")+" "+path)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", "markdown", "markdown, json or html")
	flags.StringVarP(&output, "output", "o", "", "output file (default generated in --dir)")
	flags.StringVar(&dir, "dir", "", "directory for the generated file name (default .)")
	flags.BoolVar(&open, "open", false, "open the file after export")
	flags.BoolVarP(&details, "details", "d", false, "include research details")
	flags.StringVar(&theme, "theme", "", "HTML theme: dark or light")
	return cmd
}

// =============================================================================
// DELETE
// =============================================================================

func newHistoryDeleteCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a conversation, or all with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(ctx context.Context, store *storage.Store) error {
				if all {
					n, err := store.Count(ctx)
					if err != nil {
						return err
					}
					if err := store.Clear(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d conversations.\n", n)
					return nil
				}
				id, err := store.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted "+id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every conversation")
	return cmd
}
