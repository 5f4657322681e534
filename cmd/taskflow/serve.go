package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	serveradapter "github.com/hylla/taskflow/internal/adapters/server"
	"github.com/hylla/taskflow/internal/adapters/server/httpapi"
	"github.com/hylla/taskflow/internal/app"
	"github.com/spf13/cobra"
)

// serveCommandRunner starts the HTTP serve flow; tests replace it.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func (c *cli) serveCommand() *cobra.Command {
	var httpBind, apiEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, "serve", func(ctx context.Context, deps *runtimeDeps) error {
				if err := deps.cfg.ValidateServe(); err != nil {
					return err
				}
				auth, err := httpapi.NewAuthenticator(deps.cfg.Auth.JWTSecret, deps.cfg.Auth.Issuer)
				if err != nil {
					return fmt.Errorf("configure authenticator: %w", err)
				}

				serverCfg := serveradapter.Config{
					HTTPBind:    deps.cfg.Server.HTTPBind,
					APIEndpoint: deps.cfg.Server.APIEndpoint,
				}
				if strings.TrimSpace(httpBind) != "" {
					serverCfg.HTTPBind = httpBind
				}
				if strings.TrimSpace(apiEndpoint) != "" {
					serverCfg.APIEndpoint = apiEndpoint
				}
				deps.logger.Info("starting api server", "http", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "notify", deps.publisher != nil)
				return serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{
					Service: deps.api,
					Auth:    auth,
					Logger:  deps.logger.Component("http"),
					Ready:   deps.repo.Ping,
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (overrides server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "API mount path (overrides server.api_endpoint)")
	return cmd
}

func (c *cli) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [project-id]",
		Short: "Stream board change events as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := ""
			if len(args) == 1 {
				projectID = args[0]
			}
			return c.withRuntime(cmd, "watch", func(ctx context.Context, deps *runtimeDeps) error {
				if deps.publisher == nil {
					return errors.New("notify.redis_addr is not configured")
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				return deps.publisher.Subscribe(ctx, projectID, func(event app.BoardEvent) {
					if err := enc.Encode(event); err != nil {
						deps.logger.Warn("write board event failed", "err", err)
					}
				})
			})
		},
	}
}
