package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/database"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/logging"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/server"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
)

const exportPageSize = 500

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "sitegen",
		Short:        "Generate and serve small business websites",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Load()
			// Logs go to stderr so command output on stdout stays clean.
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := cfg.Validate(); err != nil {
					return err
				}
				srv, err := server.New(cmd.Context(), cfg, true)
				if err != nil {
					return err
				}
				return srv.Run()
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if cfg.StorageDriver == "memory" {
					return errors.New("migrate needs STORAGE_DRIVER=postgres")
				}
				db, err := database.Connect(cfg)
				if err != nil {
					return err
				}
				if err := database.Migrate(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		newGenerateCmd(func() *config.Config { return cfg }),
		newLeadsCmd(func() *config.Config { return cfg }),
	)
	return root
}

func newGenerateCmd(cfg func() *config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a site offline from a JSON business record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return generateSite(cmd.Context(), cfg(), raw, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the JSON business record")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func generateSite(ctx context.Context, cfg *config.Config, raw []byte, out io.Writer) error {
	var data generator.BusinessData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse business record: %w", err)
	}
	if data.ID == "" {
		data.ID = uuid.NewString()
	}

	opts := generator.Options{OutputDir: cfg.GeneratedSitesDir, FormAction: cfg.ContactFormAction}
	if cfg.TemplateDir != "" {
		opts.Templates = generator.TemplatesFromDir(cfg.TemplateDir)
	}
	gen, err := generator.New(opts)
	if err != nil {
		return err
	}
	result, err := gen.Generate(ctx, data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newLeadsCmd(cfg func() *config.Config) *cobra.Command {
	leads := &cobra.Command{Use: "leads", Short: "Manage captured email leads"}

	var site string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write leads as CSV to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := server.New(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer srv.Close()
			return exportLeads(cmd.Context(), srv.Leads, site, cmd.OutOrStdout())
		},
	}
	export.Flags().StringVar(&site, "site", "", "only export leads of this site id")
	leads.AddCommand(export)
	return leads
}

func exportLeads(ctx context.Context, leadService *services.LeadService, site string, out io.Writer) error {
	var all []models.EmailLead
	if site != "" {
		siteID, err := uuid.Parse(site)
		if err != nil {
			return fmt.Errorf("invalid site id %q", site)
		}
		if all, err = leadService.ListForSite(ctx, siteID); err != nil {
			return err
		}
		return services.WriteCSV(out, all)
	}

	for offset := 0; ; offset += exportPageSize {
		page, total, err := leadService.ListAll(ctx, exportPageSize, offset)
		if err != nil {
			return err
		}
		all = append(all, page...)
		if len(page) < exportPageSize || int64(offset+len(page)) >= total {
			break
		}
	}
	return services.WriteCSV(out, all)
}
