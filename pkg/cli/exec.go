package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engram-dev/engram/pkg/agent/tool"
	"github.com/engram-dev/engram/pkg/agent/tool/core"
	"github.com/engram-dev/engram/pkg/cli/config"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/engram-dev/engram/pkg/utils/safe"
)

// cmdExec dispatches a single tool operation and prints the envelope,
// mainly for local testing against the in-memory backend.
func cmdExec() *cli.Command {
	var tenantID string
	var argsJSON string
	var repoCfg config.Repository
	var tenantsCfg config.Tenants

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tenant",
			Usage:       "Tenant ID to run the operation as (default tenant when omitted)",
			Sources:     cli.EnvVars("ENGRAM_TENANT"),
			Destination: &tenantID,
		},
		&cli.StringFlag{
			Name:        "args",
			Usage:       "Operation arguments as a JSON object",
			Value:       "{}",
			Destination: &argsJSON,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, tenantsCfg.Flags()...)

	return &cli.Command{
		Name:      "exec",
		Aliases:   []string{"x"},
		Usage:     "Execute a single tool operation and print the envelope",
		ArgsUsage: "<operation>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			operation := c.Args().First()
			if operation == "" {
				return goerr.New("operation name is required")
			}

			args := map[string]any{}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return goerr.Wrap(err, "args must be a JSON object")
			}
			if tenantID != "" {
				args[tool.TenantIDArg] = tenantID
			}

			registry, err := tenantsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load tenant registry")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			uc, err := usecase.New(repo)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}
			defer uc.Close()

			dispatcher := tool.NewDispatcher(core.New(uc),
				tool.WithTenantRegistry(registry),
			)

			envelope := dispatcher.Execute(ctx, operation, args)

			out, err := json.MarshalIndent(envelope, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to render envelope")
			}
			safe.Write(ctx, os.Stdout, append(out, '\n'))

			return nil
		},
	}
}
