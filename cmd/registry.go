package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/service"
)

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply registry schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := c.openConnection(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			version, err := conn.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, conn.Driver())
			return nil
		},
	}
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the registry with the valid rows of an upload (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				rows, err := r.Ingest(data)
				if err != nil {
					return err
				}
				report, err := r.CommitReplace(cmd.Context(), rows)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "imported %d members\n", report.Count)
				printProblems(out, report.Problems)
				return nil
			})
		},
	}
}

func (c *cli) previewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Validate an upload without committing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				preview, err := r.Preview(data)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printRows(out, preview.Rows)
				fmt.Fprintf(out, "%d rows, %d with errors\n", len(preview.Rows), preview.ErrorCount)
				return nil
			})
		},
	}
}

func (c *cli) syncCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync FILE",
		Short: "Add new and delete missing members; matching members are left untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				return runSync(cmd.Context(), cmd.OutOrStdout(), r, data, dryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without committing")
	return cmd
}

func runSync(ctx context.Context, out io.Writer, r *service.Registry, data []byte, dryRun bool) error {
	rows, err := r.Ingest(data)
	if err != nil {
		return err
	}

	diff, err := r.Diff(ctx, rows)
	if errors.Is(err, model.ErrValidationFailed) {
		var problems []string
		for _, row := range rows {
			if !row.Valid() {
				problems = append(problems, fmt.Sprintf("row %d: %s", row.Line, strings.Join(row.Errors, "; ")))
			}
		}
		printProblems(out, problems)
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "plan: delete %d, add %d, unchanged %d\n", len(diff.ToDelete), len(diff.ToAdd), len(diff.Existing))
	if dryRun {
		return nil
	}

	report, err := r.CommitSync(ctx, diff.ToDelete, diff.ToAdd)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d, added %d\n", report.Deleted, report.Added)
	printProblems(out, report.Problems)
	return nil
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all members sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				views, err := r.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				printMembers(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
}

func printProblems(w io.Writer, problems []string) {
	for _, p := range problems {
		fmt.Fprintln(w, "  "+p)
	}
}

func printRows(w io.Writer, rows []model.ValidatedRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tEMAIL\tFIRST\tLAST\tYEAR\tROLE\tERRORS")
	for _, row := range rows {
		year := ""
		if row.JoinYear != 0 {
			year = strconv.Itoa(row.JoinYear)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Line, row.Email, row.FirstName, row.LastName, year, row.Role, strings.Join(row.Errors, "; "))
	}
	_ = tw.Flush()
}

func printMembers(w io.Writer, views []model.MemberView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PSEUDONYM\tLAST\tFIRST\tYEAR\tROLE\tMASKED")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Pseudonym, v.LastName, v.FirstName, v.JoinYear, v.Role, strings.Join(v.Masked, ","))
	}
	_ = tw.Flush()
}

func printMember(w io.Writer, v model.MemberView) {
	fmt.Fprintf(w, "pseudonym: %s\nfirst name: %s\nlast name: %s\njoin year: %s\nrole: %s\n",
		v.Pseudonym, v.FirstName, v.LastName, v.JoinYear, v.Role)
	if len(v.Masked) > 0 {
		fmt.Fprintf(w, "masked: %s\n", strings.Join(v.Masked, ","))
	}
}
