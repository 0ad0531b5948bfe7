// Command assurelog runs report imports, exports and maintenance against a
// local or remote report database without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/assurelog/internal/blob"
	"github.com/JonMunkholm/assurelog/internal/config"
	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
	"github.com/JonMunkholm/assurelog/internal/render"
	"github.com/JonMunkholm/assurelog/internal/store"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		os.Exit(1)
	}
}

// errorText is the user-facing form of err. Column rejections also list
// what the header was missing and what it actually held.
func errorText(err error) string {
	text := core.FormatUserError(err)

	var missing *core.MissingColumnsError
	if errors.As(err, &missing) {
		text += "\n  missing columns: " + strings.Join(missing.Missing, ", ")
		text += "\n  found columns:   " + strings.Join(missing.Found, ", ")
	}
	return text
}

// app carries the settings resolved from flags and ASSURELOG_* variables.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "assurelog",
		Short: "Test evidence reports from the command line",
		Long: `assurelog imports test-case spreadsheets into evidence reports, lists
and exports them as PDF, and mints bearer tokens for the HTTP API.

Every flag can also be set through an ASSURELOG_<FLAG> environment
variable, for example ASSURELOG_DATABASE=sqlite:./assurelog.db.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), a.v.GetString("log-level"), "text"))
		},
	}

	a.v.SetEnvPrefix("ASSURELOG")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	flags := root.PersistentFlags()
	flags.String("database", "sqlite:assurelog.db", "database url (postgres://..., sqlite:PATH)")
	flags.String("uploads-dir", "uploads", "evidence blob directory")
	flags.String("generated-dir", "generated_pdfs", "rendered document directory")
	flags.String("status-synonyms", "", "YAML file with extra status synonyms")
	flags.String("user-id", "cli", "identity the command acts as")
	flags.String("username", "cli", "username recorded as report author")
	flags.Bool("admin", false, "act with admin visibility over every report")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	for _, name := range []string{"database", "uploads-dir", "generated-dir", "status-synonyms",
		"user-id", "username", "admin", "json", "log-level"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.migrateCmd(),
		a.tokenCmd(),
		a.importCmd(),
		a.validateCmd(),
		a.reportsCmd(),
		a.exportCmd(),
	)
	return root
}

// identity is the caller every service operation runs as.
func (a *app) identity() core.Identity {
	role := core.RoleUser
	if a.v.GetBool("admin") {
		role = core.RoleAdmin
	}
	return core.Identity{
		ID:       a.v.GetString("user-id"),
		Username: a.v.GetString("username"),
		Role:     role,
	}
}

func (a *app) openDB(ctx context.Context) (*store.DB, error) {
	cfg := config.DatabaseConfig{URL: a.v.GetString("database"), MaxConns: 4}
	if cfg.Driver() == "" {
		return nil, fmt.Errorf("unsupported database url %q", cfg.URL)
	}
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// withService opens the database and blob storage and runs fn against a
// fully wired service.
func (a *app) withService(ctx context.Context, fn func(context.Context, *core.Service) error) error {
	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := blob.NewFS(a.v.GetString("uploads-dir"))
	if err != nil {
		return err
	}
	artifacts, err := render.NewArtifactWriter(a.v.GetString("generated-dir"), blobs)
	if err != nil {
		return err
	}
	statuses, err := core.LoadStatusTable(a.v.GetString("status-synonyms"))
	if err != nil {
		return err
	}

	svc := core.NewService(db, blobs, core.Options{
		Renderer: artifacts,
		Statuses: statuses,
	})
	return fn(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
