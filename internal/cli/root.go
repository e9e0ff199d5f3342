// Package cli implements courierctl, the operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"courier/internal/config"
	"courier/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the dependencies commands resolve lazily.
type RootOptions struct {
	Format string

	// LoadConfig and Connect are replaced in tests.
	LoadConfig func() (*config.Config, error)
	Connect    func(cfg *config.Config) (*gorm.DB, error)

	cfg *config.Config
}

// NewRootCommand creates the root command for courierctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		LoadConfig: config.LoadConfig,
		Connect:    database.Connect,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courierctl",
		Short: "Operate a courier deployment",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg
	return cfg, nil
}

func (o *RootOptions) database() (*gorm.DB, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	db, err := o.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// print writes data as indented JSON, or the text lines in text mode.
func (o *RootOptions) print(w io.Writer, data any, lines ...string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
