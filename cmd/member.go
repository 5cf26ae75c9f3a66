package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dtroode/memberpass/internal/keys"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/service"
)

type memberFlags struct {
	email    string
	first    string
	last     string
	joined   string
	joinYear int
	role     string
}

func (c *cli) memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Inspect and edit single members",
	}
	cmd.AddCommand(
		c.memberGetCommand(),
		c.memberDeleteCommand(),
		memberHashCommand(),
		c.memberUpsertCommand(),
		c.memberUpdateCommand(),
	)
	return cmd
}

// resolvePseudonym accepts either a pseudonym or an email address.
func resolvePseudonym(arg string) string {
	if strings.Contains(arg, "@") {
		return keys.Pseudonym(arg)
	}
	return strings.ToLower(arg)
}

func (c *cli) memberGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PSEUDONYM|EMAIL",
		Short: "Show one decrypted member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				view, err := r.Get(cmd.Context(), resolvePseudonym(args[0]))
				if err != nil {
					return err
				}
				printMember(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func (c *cli) memberDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PSEUDONYM|EMAIL",
		Short: "Remove one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				existed, err := r.Delete(cmd.Context(), resolvePseudonym(args[0]))
				if err != nil {
					return err
				}
				if !existed {
					return model.ErrNotFound
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted")
				return nil
			})
		},
	}
}

func memberHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "hash EMAIL",
		Short:             "Print the pseudonym an email is stored under",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: skipConfig,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), keys.Pseudonym(args[0]))
		},
	}
}

func (c *cli) memberUpsertCommand() *cobra.Command {
	var f memberFlags

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Add a member or replace the member with the same email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				checked := r.Revalidate([]model.ValidatedRow{{
					Email:     f.email,
					FirstName: f.first,
					LastName:  f.last,
					JoinDate:  f.joined,
					Role:      f.role,
				}})

				pseudonym, created, err := r.Upsert(cmd.Context(), checked.Rows[0])
				if err != nil {
					return err
				}
				action := "updated"
				if created {
					action = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", action, pseudonym)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "member email")
	cmd.Flags().StringVar(&f.first, "first", "", "first name")
	cmd.Flags().StringVar(&f.last, "last", "", "last name")
	cmd.Flags().StringVar(&f.joined, "joined", "", "join date, e.g. 01.03.2019 or 2019-03-01")
	cmd.Flags().StringVar(&f.role, "role", "", "role")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) memberUpdateCommand() *cobra.Command {
	var f memberFlags

	cmd := &cobra.Command{
		Use:   "update PSEUDONYM|EMAIL",
		Short: "Edit a member; --new-email re-keys the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
				pseudonym, err := r.Update(cmd.Context(), resolvePseudonym(args[0]), model.MemberUpdate{
					NewEmail:  f.email,
					FirstName: f.first,
					LastName:  f.last,
					JoinYear:  f.joinYear,
					Role:      f.role,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", pseudonym)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.email, "new-email", "", "re-key the member under this email")
	cmd.Flags().StringVar(&f.first, "first", "", "first name")
	cmd.Flags().StringVar(&f.last, "last", "", "last name")
	cmd.Flags().IntVar(&f.joinYear, "year", 0, "join year")
	cmd.Flags().StringVar(&f.role, "role", "", "role")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	return cmd
}
