/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/conflict"
	"github.com/Seednode/quizbox/importcsv"
	"github.com/Seednode/quizbox/library"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

func openLibrary(cfg *Config) (*library.Library, error) {
	return library.Open(library.Config{
		Path:      cfg.db,
		EnableWAL: cfg.db != ":memory:",
	})
}

type importOptions struct {
	game       string
	title      string
	onConflict string
	header     int
	selection  []int
	progress   bool
}

// policyAction resolves a group the same way for every conflict. Overwrite
// merges the answers of every candidate into the existing category.
func policyAction(policy conflict.Kind, g conflict.Group) conflict.Action {
	switch policy {
	case conflict.Rename:
		return conflict.RenameAutomatically()
	case conflict.Overwrite:
		merged := category.NewAnswerSet()
		for _, c := range g.Candidates {
			for _, a := range c.Answers {
				merged.Add(a)
			}
		}
		return conflict.OverwriteWith(0, merged.Slice())
	}
	return conflict.SkipGroup()
}

// runImport adds the rows of a CSV file to a game, creating the game when
// opts.game is empty, and resolves every conflict with one policy.
func runImport(ctx context.Context, lib *library.Library, r io.Reader, source string, opts importOptions, out io.Writer) (conflict.Summary, error) {
	var policy conflict.Kind
	if err := policy.UnmarshalText([]byte(opts.onConflict)); err != nil {
		return conflict.Summary{}, err
	}

	rows, err := importcsv.Parse(r)
	if err != nil {
		return conflict.Summary{}, err
	}
	if opts.header >= 0 {
		if rows, err = importcsv.WithHeader(rows, opts.header); err != nil {
			return conflict.Summary{}, err
		}
	}
	if rows, err = importcsv.Select(rows, opts.selection); err != nil {
		return conflict.Summary{}, err
	}

	gameID := opts.game
	if gameID == "" {
		title := opts.title
		if title == "" {
			title = strings.TrimSuffix(source, filepath.Ext(source))
		}

		g := &library.Game{Title: title}
		if err := lib.Put(ctx, g); err != nil {
			return conflict.Summary{}, err
		}
		gameID = g.ID

		fmt.Fprintf(out, "Created game %q (%s)\n", g.Title, g.ID)
	} else if _, err := lib.Get(ctx, gameID); err != nil {
		return conflict.Summary{}, err
	}

	store := lib.Categories(gameID)

	groups, clean, err := conflict.Detect(ctx, store, importcsv.Incoming(rows, source))
	if err != nil {
		return conflict.Summary{}, err
	}

	added, err := conflict.AddClean(ctx, store, clean)
	if err != nil {
		return conflict.Summary{}, err
	}

	fmt.Fprintf(out, "Added %d new categories\n", added)

	if len(groups) == 0 {
		return conflict.Summary{}, nil
	}

	session, err := conflict.NewSession(store, groups)
	if err != nil {
		return conflict.Summary{}, err
	}

	return resolveAll(ctx, session, policy, opts.progress, out)
}

// resolveAll applies policy to every group of session and then applies the
// session. When apply stops early the partial summary is returned with the
// error.
func resolveAll(ctx context.Context, session *conflict.Session, policy conflict.Kind, progress bool, out io.Writer) (conflict.Summary, error) {
	for i, g := range session.Groups() {
		if err := session.Do(ctx, i, policyAction(policy, g)); err != nil {
			session.Cancel()
			return conflict.Summary{}, err
		}
	}

	var bar *pb.ProgressBar
	if progress {
		bar = pb.New(session.Len()).SetWriter(out).SetTemplate(pb.Simple)
		bar.Start()
	}

	summary, err := session.ApplyWithProgress(ctx, func(done, _ int, _ conflict.Outcome) {
		if bar != nil {
			bar.SetCurrent(int64(done))
		}
	})

	if bar != nil {
		bar.Finish()
	}

	if err != nil {
		var applyErr *conflict.ApplyError
		if errors.As(err, &applyErr) {
			fmt.Fprint(out, applyErr.Summary.String())
			return applyErr.Summary, err
		}
		return summary, err
	}

	fmt.Fprint(out, summary.String())

	return summary, nil
}

func newImportCmd(cfg *Config) *cobra.Command {
	opts := importOptions{}

	cmd := &cobra.Command{
		Use:   "import [flags] file.csv",
		Short: "Import categories from a CSV file into a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer lib.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			_, err = runImport(cmd.Context(), lib, f, filepath.Base(args[0]), opts, cmd.OutOrStdout())

			return err
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&opts.game, "game", "g", "", "id of the game to import into; a new game is created if empty (env: QUIZBOX_GAME)")
	fs.StringVarP(&opts.title, "title", "t", "", "title for a newly created game, defaults to the file name (env: QUIZBOX_TITLE)")
	fs.StringVar(&opts.onConflict, "on-conflict", "skip", "how to resolve categories that already exist: skip, rename or overwrite (env: QUIZBOX_ON_CONFLICT)")
	fs.IntVar(&opts.header, "header", -1, "index of a row to use as a header for every other row (env: QUIZBOX_HEADER)")
	fs.IntSliceVar(&opts.selection, "select", nil, "indices of the rows to import, defaults to all (env: QUIZBOX_SELECT)")
	fs.BoolVar(&opts.progress, "progress", true, "show a progress bar while resolving conflicts (env: QUIZBOX_PROGRESS)")

	return cmd
}

func runExport(ctx context.Context, lib *library.Library, id string, format library.Format, out io.Writer) error {
	g, err := lib.Get(ctx, id)
	if err != nil {
		return err
	}

	return library.Encode(out, g, format)
}

func newExportCmd(cfg *Config) *cobra.Command {
	var (
		id     string
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export [flags]",
		Short: "Write a game to a JSON or YAML file",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--game is required")
			}

			f, err := library.ParseFormat(format)
			if err != nil {
				return err
			}
			if format == "" && output != "" && output != "-" {
				f = library.FormatFromFilename(output)
			}

			lib, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer lib.Close()

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()

				out = file
			}

			return runExport(cmd.Context(), lib, id, f, out)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&id, "game", "g", "", "id of the game to export (env: QUIZBOX_GAME)")
	fs.StringVarP(&format, "format", "f", "", "json or yaml, defaults to the output file extension or json (env: QUIZBOX_FORMAT)")
	fs.StringVarP(&output, "output", "o", "-", "file to write to, or - for stdout (env: QUIZBOX_OUTPUT)")

	return cmd
}

func runList(ctx context.Context, lib *library.Library, opts library.ListOptions, out io.Writer) error {
	games, err := lib.List(ctx, opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORIES\tANSWERS\tUPDATED")
	for _, g := range games {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", g.ID, g.Title, len(g.Categories), g.AnswerCount(), g.Updated.Local().Format(logDate))
	}

	return tw.Flush()
}

func newListCmd(cfg *Config) *cobra.Command {
	var search, order string

	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List the games in the library",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := library.ParseSort(order)
			if err != nil {
				return err
			}

			lib, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer lib.Close()

			return runList(cmd.Context(), lib, library.ListOptions{Search: search, Sort: s}, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&search, "search", "s", "", "only list games whose title contains this text (env: QUIZBOX_SEARCH)")
	fs.StringVar(&order, "sort", "name-asc", "name-asc, name-desc, date-new or date-old (env: QUIZBOX_SORT)")

	return cmd
}
