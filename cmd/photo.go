package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtroode/memberpass/internal/keys"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/service"
)

func (c *cli) photoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Store, read and delete encrypted member photos",
	}
	cmd.AddCommand(
		c.photoStoreCommand(),
		c.photoReadCommand(),
		c.photoExistsCommand(),
		c.photoDeleteCommand(),
	)
	return cmd
}

func (c *cli) withPhotos(cmd *cobra.Command, fn func(*service.Photos) error) error {
	tokens, err := c.newTokens()
	if err != nil {
		return err
	}
	photos, _, err := c.newPhotos(cmd.Context(), tokens, nil)
	if err != nil {
		return err
	}
	return fn(photos)
}

func (c *cli) photoStoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "store EMAIL FILE",
		Short: "Encrypt and store a photo, replacing any previous one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			return c.withPhotos(cmd, func(p *service.Photos) error {
				photoID, err := p.StorePhoto(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored photo %s\n", photoID)
				return nil
			})
		},
	}
}

func (c *cli) photoReadCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "read EMAIL",
		Short: "Decrypt a stored photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPhotos(cmd, func(p *service.Photos) error {
				email := keys.Normalize(args[0])
				photoID := keys.PhotoID(email)
				payload := model.Payload{model.PayloadUserID: email, model.PayloadPhotoID: photoID}

				data, err := p.ReadPhoto(cmd.Context(), payload, photoID)
				if err != nil {
					return err
				}

				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	return cmd
}

func (c *cli) photoExistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exists EMAIL",
		Short: "Report whether a photo is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPhotos(cmd, func(p *service.Photos) error {
				exists, err := p.PhotoExists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), exists)
				return nil
			})
		},
	}
}

func (c *cli) photoDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Remove a stored photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPhotos(cmd, func(p *service.Photos) error {
				existed, err := p.DeletePhoto(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !existed {
					return model.ErrPhotoNotFound
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted")
				return nil
			})
		},
	}
}
