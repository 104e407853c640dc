package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/trasporti/internal/importer"
	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/metrics"
)

type importOptions struct {
	file      string
	schemaOut string
	dryRun    bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace all records with the rows of the source spreadsheet",
		Long: `Reads the first sheet of the workbook, derives the record shape from the
allow-listed headers, registers it as a new schema version and replaces every
stored record with the transformed rows. Existing records are deleted before
the insert and are not restored if it fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Workbook to import (default: IMPORT_SOURCE)")
	cmd.Flags().StringVar(&opts.schemaOut, "schema-out", "", "Schema artifact path (default: IMPORT_SCHEMA_OUT)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Read and transform only; leave the store untouched")

	return cmd
}

func runImport(cmd *cobra.Command, a *app, opts importOptions) error {
	ctx := cmd.Context()
	cfg := a.cfg

	source := cfg.Import.Source
	if opts.file != "" {
		source = opts.file
	}
	schemaOut := cfg.Import.SchemaOut
	if opts.schemaOut != "" {
		schemaOut = opts.schemaOut
	}

	im := importer.New(importer.Options{
		Source:         source,
		SchemaOut:      schemaOut,
		AllowedHeaders: cfg.Import.AllowedHeaders,
		ForceText:      cfg.Import.ForceText,
		SampleSize:     cfg.Import.SampleSize,
		BatchSize:      cfg.Import.BatchSize,
		DryRun:         opts.dryRun,
		Connect:        importer.Connector(a.storeOptions()),
		Metrics:        metrics.New(),
		Logger:         logging.FromContext(ctx),
	})

	res, err := im.Run(ctx)
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("import finished",
		"run_id", res.RunID,
		"columns", len(res.Columns),
		"rows", res.Report.Rows,
		"inserted", res.Inserted,
		"schema_version", res.SchemaVersion,
		"dry_run", opts.dryRun,
	)
	return nil
}
