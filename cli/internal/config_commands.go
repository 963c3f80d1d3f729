package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/atrecord/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and contexts",
		Long:  `Manage CLI configuration including service contexts, similar to kubectl contexts.`,
	}

	cmd.AddCommand(newCurrentContextCommand())
	cmd.AddCommand(newUseContextCommand())
	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newAddContextCommand())
	cmd.AddCommand(newDeleteContextCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

// current-context command
func newCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Display the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			fmt.Fprintln(cmd.OutOrStdout(), cliCtx.Config.CurrentContext)
			return nil
		},
	}
}

// use-context command
func newUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context CONTEXT_NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			contextName := args[0]

			if err := cliCtx.Config.SetCurrentContext(contextName); err != nil {
				return err
			}
			if err := config.Save(cliCtx.ConfigPath, cliCtx.Config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", contextName)
			return nil
		},
	}
}

// list-contexts command
func newListContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-contexts",
		Aliases: []string{"get-contexts"},
		Short:   "List all available contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCliContext(cmd).Config

			if len(cfg.Contexts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENT\tNAME\tSERVICE\tIDENTIFIER\tSTORAGE\tTHEME")

			for _, name := range cfg.ContextNames() {
				ctx := cfg.Contexts[name]
				current := " "
				if name == cfg.CurrentContext {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					current,
					name,
					ctx.Service.URL,
					ctx.Identifier,
					ctx.Storage.Backend,
					ctx.Rendering.Theme,
				)
			}
			return w.Flush()
		},
	}
}

// add-context command
func newAddContextCommand() *cobra.Command {
	var (
		serviceURL     string
		identifier     string
		backend        string
		path           string
		redisAddr      string
		redisKeyPrefix string
		postgresDSN    string
		theme          string
	)

	cmd := &cobra.Command{
		Use:   "add-context CONTEXT_NAME",
		Short: "Add or update a context",
		Args:  cobra.ExactArgs(1),
		Example: `  atrecord config add-context prod --service-url https://pds.example.com --identifier alice.example.com
  atrecord config add-context shared --service-url https://pds.example.com --storage redis --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			contextName := args[0]

			ctx := config.NewContext(serviceURL)
			ctx.Identifier = identifier
			ctx.Storage = config.StorageConfig{
				Backend:        backend,
				Path:           path,
				RedisAddr:      redisAddr,
				RedisKeyPrefix: redisKeyPrefix,
				PostgresDSN:    postgresDSN,
			}
			ctx.Rendering.Theme = theme

			if err := cliCtx.Config.AddContext(contextName, ctx); err != nil {
				return err
			}

			// If this is the first context, make it current
			if len(cliCtx.Config.Contexts) == 1 {
				cliCtx.Config.CurrentContext = contextName
			}

			if err := config.Save(cliCtx.ConfigPath, cliCtx.Config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q added/updated\n", contextName)
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Service base URL")
	cmd.Flags().StringVar(&identifier, "identifier", "", "Default login identifier")
	cmd.Flags().StringVar(&backend, "storage", config.BackendFile, "Session storage backend (file, memory, redis, postgres, keychain)")
	cmd.Flags().StringVar(&path, "storage-path", "", "Directory for the file backend")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the redis backend")
	cmd.Flags().StringVar(&redisKeyPrefix, "redis-key-prefix", "", "Key prefix for the redis backend")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Connection string for the postgres backend")
	cmd.Flags().StringVar(&theme, "theme", "auto", "Rendering theme (auto, dark, light, notty)")
	_ = cmd.MarkFlagRequired("service-url")

	return cmd
}

// delete-context command
func newDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context CONTEXT_NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			contextName := args[0]

			if err := cliCtx.Config.DeleteContext(contextName); err != nil {
				return err
			}
			if err := config.Save(cliCtx.ConfigPath, cliCtx.Config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted\n", contextName)
			return nil
		},
	}
}

// show command - shows the current context
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current context configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			out := cmd.OutOrStdout()

			ctx, err := cliCtx.Config.GetCurrentContext()
			if err != nil {
				return fmt.Errorf("failed to get current context: %w", err)
			}

			fmt.Fprintf(out, "Current context: %s\n", cliCtx.Config.CurrentContext)
			fmt.Fprintf(out, "  Service URL: %s\n", ctx.Service.URL)
			fmt.Fprintf(out, "  Identifier: %s\n", ctx.Identifier)
			fmt.Fprintf(out, "  Storage Backend: %s\n", ctx.Storage.Backend)
			if ctx.Storage.Backend == config.BackendFile {
				if dir, err := ctx.SessionDir(); err == nil {
					fmt.Fprintf(out, "  Session Directory: %s\n", dir)
				}
			}
			if ctx.Storage.RedisAddr != "" {
				fmt.Fprintf(out, "  Redis Address: %s\n", ctx.Storage.RedisAddr)
			}
			if ctx.Storage.PostgresDSN != "" {
				fmt.Fprintln(out, "  Postgres DSN: (set)")
			}
			fmt.Fprintf(out, "  Glamour Theme: %s\n", ctx.Rendering.Theme)
			fmt.Fprintf(out, "  Config File: %s\n", cliCtx.ConfigPath)

			return nil
		},
	}
}
