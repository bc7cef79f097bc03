package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/memohai/accelerator/cmd/accelerator/modules"
	"github.com/memohai/accelerator/db"
	"github.com/memohai/accelerator/internal/auth"
	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/configdoc"
	internaldb "github.com/memohai/accelerator/internal/db"
	"github.com/memohai/accelerator/internal/hub"
	"github.com/memohai/accelerator/internal/logger"
	"github.com/memohai/accelerator/internal/transport"
	"github.com/memohai/accelerator/internal/version"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "accelerator",
		Short:         "Configuration hub and conversational bot services",
		Version:       version.GetInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(), newConfigCommand(), newMigrateCommand(), newTokenCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	names := make([]string, 0, len(modules.Roles))
	for _, r := range modules.Roles {
		names = append(names, string(r))
	}
	return &cobra.Command{
		Use:       "serve <" + strings.Join(names, "|") + ">",
		Short:     "Run one service, or all of them in one process",
		Example:   "CONFIG_PATH=config.toml accelerator serve hub",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(_ *cobra.Command, args []string) error {
			role, err := modules.ParseRole(args[0])
			if err != nil {
				return err
			}
			app := fx.New(append(modules.Options(role), modules.FxLogger())...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

type hubFlags struct {
	url     string
	token   string
	timeout time.Duration
}

func (f *hubFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.url, "hub-url", "", "hub base URL (defaults to hub.url from config)")
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv("ACCELERATOR_TOKEN"), "bearer token for hub writes")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")
}

func (f *hubFlags) client() (*hub.Client, error) {
	url := strings.TrimSpace(f.url)
	if url == "" {
		rc, err := runtimeConfig()
		if err != nil {
			return nil, err
		}
		url = rc.HubURL
	}
	var opts []transport.Option
	if token := strings.TrimSpace(f.token); token != "" {
		opts = append(opts, transport.WithBearerToken(token))
	}
	return hub.NewClient(url, transport.NewClient(logger.L, f.timeout, opts...)), nil
}

func newConfigCommand() *cobra.Command {
	flags := &hubFlags{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration documents in a running hub",
	}
	flags.bind(cmd)

	var configVersion string
	create := &cobra.Command{
		Use:     "create <type> <file>",
		Short:   "Create a config version from a JSON or YAML body file",
		Example: "accelerator config create SEARCH search.yaml --version v2",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(args[1])
			if err != nil {
				return err
			}
			client, err := flags.client()
			if err != nil {
				return err
			}
			ref, err := client.Create(cmd.Context(), hub.CreateRequest{
				ConfigType:    args[0],
				ConfigVersion: configVersion,
				ConfigBody:    body,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ref)
		},
	}
	create.Flags().StringVar(&configVersion, "version", "", "version to create (allocated by the hub when empty)")

	get := &cobra.Command{
		Use:   "get <type> [version]",
		Short: "Print one config version, or the active one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			v := ""
			if len(args) == 2 {
				v = args[1]
			}
			doc, err := client.Get(cmd.Context(), configdoc.Type(strings.ToUpper(args[0])), v)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	list := &cobra.Command{
		Use:   "list <type>",
		Short: "List the stored versions of a config type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			docs, err := client.List(cmd.Context(), configdoc.Type(strings.ToUpper(args[0])))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), docs)
		},
	}

	activate := &cobra.Command{
		Use:   "activate <type> <version>",
		Short: "Make a stored version the active one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			if err := client.Activate(cmd.Context(), configdoc.Type(strings.ToUpper(args[0])), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s activated\n", strings.ToUpper(args[0]), args[1])
			return nil
		},
	}

	cmd.AddCommand(create, get, list, activate)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "migrate <up|down|steps N|version|force N>",
		Short:   "Apply hub schema migrations to PostgreSQL",
		Example: "accelerator migrate up",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := modules.ProvideConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			migrations, err := fs.Sub(db.MigrationsFS, "migrations")
			if err != nil {
				return err
			}
			return internaldb.RunMigrate(logger.L, cfg.Postgres, migrations, args[0], args[1:])
		},
	}
}

func newTokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Sign a token for hub writes with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := runtimeConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(rc.JwtSecret) == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				ttl = rc.JwtExpiresIn
			}
			token, expiresAt, err := auth.GenerateToken(args[0], rc.JwtSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_expires_in)")
	return cmd
}

func runtimeConfig() (*boot.RuntimeConfig, error) {
	cfg, err := modules.ProvideConfig()
	if err != nil {
		return nil, err
	}
	return boot.ProvideRuntimeConfig(cfg)
}

// readBody loads a config body. YAML files are converted to JSON; anything
// else must already be JSON.
func readBody(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var body map[string]any
		if err := yaml.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		out, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		return out, nil
	default:
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s is not valid JSON", path)
		}
		return data, nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
