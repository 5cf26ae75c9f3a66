package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/service"
)

const cliRequester = "cli"

type identityFlags struct {
	email string
	first string
	last  string
	name  string
}

func (f *identityFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "verified member email")
	cmd.Flags().StringVar(&f.first, "first", "", "first name")
	cmd.Flags().StringVar(&f.last, "last", "", "last name")
	cmd.Flags().StringVar(&f.name, "name", "", "display name, split when first/last are empty")
	_ = cmd.MarkFlagRequired("email")
}

func (f *identityFlags) identity() model.Identity {
	return model.Identity{Email: f.email, FirstName: f.first, LastName: f.last, Name: f.name}
}

func (c *cli) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify card, photo and login tokens",
	}
	cmd.AddCommand(
		c.tokenCardCommand(),
		c.tokenPhotoCommand(),
		c.tokenMagicCommand(),
		c.tokenVerifyCommand(),
	)
	return cmd
}

// withCards builds the card service over an open registry for fn.
func (c *cli) withCards(cmd *cobra.Command, fn func(*service.Cards) error) error {
	tokens, err := c.newTokens()
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := c.newLimiter(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLimiter()

	return c.withRegistry(cmd.Context(), func(r *service.Registry) error {
		return fn(service.NewCards(r, tokens, limiter, nil, c.logger))
	})
}

func (c *cli) tokenCardCommand() *cobra.Command {
	var f identityFlags

	cmd := &cobra.Command{
		Use:   "card",
		Short: "Issue a membership card token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCards(cmd, func(cards *service.Cards) error {
				tok, err := cards.IssueCardToken(cmd.Context(), f.identity())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) tokenPhotoCommand() *cobra.Command {
	var f identityFlags

	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Issue a token for the member's own photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCards(cmd, func(cards *service.Cards) error {
				tok, photoID, err := cards.IssuePhotoToken(cmd.Context(), f.identity())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "photo_id: %s\ntoken: %s\n", photoID, tok)
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) tokenMagicCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "magic",
		Short: "Issue a magic login link for a registered member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCards(cmd, func(cards *service.Cards) error {
				link, err := cards.RequestMagicLink(cmd.Context(), email, cliRequester)
				if err != nil {
					return err
				}
				return newWriterSender(cmd.OutOrStdout(), c.cfg.HTTP.PublicURL).SendMagicLink(cmd.Context(), link)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "member email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) tokenVerifyCommand() *cobra.Command {
	var (
		domain  string
		photoID string
	)

	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := c.newTokens()
			if err != nil {
				return err
			}

			var payload any
			switch domain {
			case "card":
				payload, err = tokens.VerifyCard(args[0])
			case "photo":
				payload, err = tokens.VerifyPhoto(args[0], photoID)
			case "magic":
				var email string
				email, err = tokens.VerifyMagicLink(args[0])
				payload = map[string]string{"email": email}
			default:
				return fmt.Errorf("unknown token domain %q", domain)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "card", "token domain: card, photo or magic")
	cmd.Flags().StringVar(&photoID, "photo-id", "", "photo id a photo token must be bound to")
	return cmd
}
