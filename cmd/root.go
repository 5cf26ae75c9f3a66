package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtroode/memberpass/internal/config"
	"github.com/dtroode/memberpass/internal/logger"
)

const programName = "memberpass"

// cli carries state shared by every command after configuration load.
type cli struct {
	cfg    *config.Config
	logger *logger.Logger
	out    io.Writer
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           programName,
		Short:         "Member registry, membership card tokens and photo vault",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.SetOut(out)
	root.SetErr(os.Stderr)

	root.AddCommand(
		c.serveCommand(),
		c.migrateCommand(),
		c.importCommand(),
		c.previewCommand(),
		c.syncCommand(),
		c.listCommand(),
		c.memberCommand(),
		c.tokenCommand(),
		c.photoCommand(),
		versionCommand(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.cfg = cfg
	c.logger = logger.New(cfg.LogLevel)
	return nil
}

// skipConfig disables configuration loading for commands that need no
// secrets.
func skipConfig(*cobra.Command, []string) error {
	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print build information",
		PersistentPreRunE: skipConfig,
		Run: func(cmd *cobra.Command, _ []string) {
			logAppVersion(cmd.OutOrStdout())
		},
	}
}

func logAppVersion(w io.Writer) {
	tmpl := `Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Fprintf(w, tmpl, buildVersion, buildDate, buildCommit)
}

// readInput reads a whole file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
