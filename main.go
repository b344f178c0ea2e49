package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/spf13/cobra"

	"editgrid/internal/dblib"
	"editgrid/internal/grid"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "editgrid [dbname] table",
	Short: "editgrid edits a PostgreSQL table row by row",
	Long: `editgrid binds a PostgreSQL table or view to an editable grid and drives it
with line commands. Edits are stored as single-row UPDATE, INSERT and DELETE
statements keyed by the primary key or row identifier.

Examples:
  editgrid test users
  editgrid test public.users --where "age > 30" --order-by name
  echo "show" | editgrid -d test -h db.local users`,
	Args:          cobra.RangeArgs(1, 2),
	RunE:          runEditgrid,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	database   string
	host       string
	port       string
	username   string
	password   string
	configFile string
	where      string
	orderBy    string
	limit      int
	dbg        bool
)

func init() {
	rootCmd.Flags().BoolP("help", "", false, "help for editgrid")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "Database name")
	rootCmd.Flags().StringVarP(&host, "host", "h", "", "Database host")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Database port")
	rootCmd.Flags().StringVarP(&username, "username", "U", "", "Database username")
	rootCmd.Flags().StringVarP(&password, "password", "W", "", "Database password")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Connections file (yaml or toml), defaults to the config dir")
	rootCmd.Flags().StringVar(&where, "where", "", "Row filter")
	rootCmd.Flags().StringVar(&orderBy, "order-by", "", "Row order")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows, 0 for no limit")
	rootCmd.Flags().BoolVar(&dbg, "dbg", false, "Debug mode")
}

func runEditgrid(cmd *cobra.Command, args []string) error {
	setupLog(dbg)

	cfg, table, err := resolveConfig(args)
	if err != nil {
		return err
	}

	settings, err := LoadSettings()
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}
	opts, err := settings.ToOptions(lgr.Std)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := cfg.connect(ctx)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	sess, err := dblib.OpenSession(ctx, db, lgr.Std)
	if err != nil {
		return err
	}
	defer sess.Close()

	shell, err := openShell(ctx, sess, cfg, table, opts, settings.UseSerialValues, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer shell.Close()

	st, _ := os.Stdin.Stat()
	interactive := st != nil && st.Mode()&os.ModeCharDevice != 0
	return shell.Run(ctx, cmd.InOrStdin(), interactive)
}

// resolveConfig merges the connections file entry named by the first argument with the flags.
func resolveConfig(args []string) (*Config, string, error) {
	cfg := &Config{
		Database: database,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Where:    where,
		OrderBy:  orderBy,
		Limit:    limit,
	}
	table := args[len(args)-1]

	path := configFile
	if path == "" {
		var err error
		if path, err = defaultConnectionsPath(); err != nil {
			return nil, "", err
		}
	}
	conns, err := LoadConnections(path)
	if err != nil {
		return nil, "", fmt.Errorf("error loading config: %w", err)
	}

	if len(args) == 2 {
		name := args[0]
		if db, ok := conns.GetDatabase(name); ok {
			cfg.merge(db)
			if cfg.Database == "" {
				cfg.Database = name
			}
		} else if cfg.Database == "" {
			cfg.Database = name
		}
	}
	if cfg.Database == "" {
		return nil, "", fmt.Errorf("must specify database name")
	}
	return cfg, table, nil
}

// openShell loads the relation, checks access and binds the first grid.
func openShell(ctx context.Context, sess *dblib.Session, cfg *Config, table string, opts grid.Options,
	useSerial bool, out io.Writer) (*Shell, error) {
	schema, name := dblib.SplitTableName(table)
	rel, err := dblib.LoadRelation(ctx, sess, schema, name)
	if err != nil {
		return nil, err
	}
	if err := dblib.CheckAccess(ctx, sess, rel.Name); err != nil {
		return nil, err
	}
	if hint := dblib.ReadOnlyHint(rel); hint != "" {
		fmt.Fprintln(out, hint)
	}

	q := dblib.NewQuery(rel)
	q.Where = cfg.Where
	q.OrderBy = cfg.OrderBy
	q.Limit = cfg.Limit

	shell := NewShell(&pgOpener{sess: sess, rel: rel, opts: opts}, q, useSerial, out, lgr.Std)
	if err := shell.Refresh(ctx); err != nil {
		return nil, err
	}
	return shell, nil
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError, lgr.Out(os.Stderr)}
	}
	logOpts = append(logOpts, debugLogOptions(os.Stderr)...)

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
