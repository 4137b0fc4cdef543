package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engram-dev/engram/pkg/utils/logging"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("ENGRAM_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("ENGRAM_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"dryRun", dryRun)

			// Get index configuration
			indexConfig := getIndexConfig()

			// Create fireconf client
			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}

				if len(plan.Steps) == 0 {
					logger.Info("No changes required")
					return nil
				}

				for _, step := range plan.Steps {
					logger.Info("Migration step",
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
			} else {
				logger.Info("Applying migrations")
				if err := client.Migrate(ctx, indexConfig); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
				logger.Info("Migrations applied successfully")
			}

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "memories",
				Indexes: []fireconf.Index{
					// ListByTenant: TenantID ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// ListByCategory: TenantID ASC, Category ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "Category", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// ListByImportance: TenantID ASC, Importance ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "Importance", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// FindByTags: TenantID ASC, Tags CONTAINS, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "Tags", Array: fireconf.ArrayConfigContains},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// Search: TenantID ASC, AccessCount DESC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "AccessCount", Order: fireconf.OrderDescending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: "relationships",
				Indexes: []fireconf.Index{
					// ListByFrom: TenantID ASC, FromID ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "FromID", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// ListByTo: TenantID ASC, ToID ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "ToID", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
					// ListByType: TenantID ASC, Type ASC, CreatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "Type", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: "audit_logs",
				Indexes: []fireconf.Index{
					// List: TenantID ASC, CreatedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "TenantID", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
