// Command teamctl reconciles a YAML description of teams and users with a
// remote identity directory.
//
//	teamctl extract  -config teamctl.toml            dump live state to files
//	teamctl validate -config teamctl.toml            check the files
//	teamctl update   -config teamctl.toml [-dry-run] apply the files remotely
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/teamctl/internal/config"
	"github.com/tmuras/teamctl/internal/directory"
	"github.com/tmuras/teamctl/internal/logging"
	"github.com/tmuras/teamctl/internal/model"
	"github.com/tmuras/teamctl/internal/store"
	"github.com/tmuras/teamctl/internal/sync"
)

var errUsage = errors.New(`usage: teamctl <extract|validate|update> [flags]

flags (all commands):
  -config string     path to TOML config file
  -data-dir string   data directory (overrides config)
validate:
  -retrieve-user-entries   synthesize missing users from the directory's
                           LDAP search and persist them to users.yml
update:
  -dry-run   report every planned change without applying any`)

func main() {
	logging.InitRuntime("teamctl")
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "teamctl.toml", "path to TOML config file")
	dataDir := fs.String("data-dir", "", "data directory (overrides config)")

	var dryRun, retrieveUserEntries *bool
	switch cmd {
	case "extract", "validate", "update":
	default:
		return errUsage
	}
	if cmd == "update" {
		dryRun = fs.Bool("dry-run", false, "report changes without applying")
	}
	if cmd == "validate" {
		retrieveUserEntries = fs.Bool("retrieve-user-entries", false, "synthesize missing users from the directory")
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := directory.NewHTTPClient(directory.HTTPClientConfig{
		BaseURL: cfg.ServerURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	catalog, err := directory.LoadCatalog(ctx, client)
	if err != nil {
		return err
	}

	switch cmd {
	case "extract":
		return runExtract(ctx, cfg, client, catalog)
	case "validate":
		return runValidate(ctx, cfg, client, catalog, *retrieveUserEntries)
	default:
		return runUpdate(ctx, cfg, client, catalog, *dryRun)
	}
}

// runExtract dumps the live directory state into the data directory.
func runExtract(ctx context.Context, cfg config.Config, client directory.Client, catalog *directory.Catalog) error {
	m, err := sync.Retrieve(ctx, client, catalog)
	if err != nil {
		return err
	}
	if err := store.Save(cfg.DataDir, m); err != nil {
		return err
	}
	log.Info().Str("data_dir", cfg.DataDir).Int("teams", len(m.Teams)).Int("users", len(m.Users)).Msg("extract done")
	return nil
}

// loadAndValidate loads the data directory and runs the full validation,
// returning the model and every problem found. lookup is nil unless missing
// users should be synthesized from the directory.
func loadAndValidate(ctx context.Context, cfg config.Config, catalog *directory.Catalog, lookup model.DirectoryLookup) (*model.Model, *model.Validator, []model.Problem, error) {
	m, err := store.Load(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	problems := model.DenormalizeAll(m)

	v := &model.Validator{
		Resolver:        catalog,
		Lookup:          lookup,
		ActiveUserLimit: cfg.UserLimit,
	}
	more, err := v.Validate(ctx, m)
	if err != nil {
		return nil, nil, nil, err
	}
	problems = append(problems, more...)
	for _, p := range problems {
		log.Warn().Msg(p.Problem())
	}
	return m, v, problems, nil
}

func runValidate(ctx context.Context, cfg config.Config, client directory.Client, catalog *directory.Catalog, retrieveUserEntries bool) error {
	var lookup model.DirectoryLookup
	if retrieveUserEntries {
		lookup = &sync.LDAPLookup{Client: client, Catalog: catalog}
	}
	m, v, problems, err := loadAndValidate(ctx, cfg, catalog, lookup)
	if err != nil {
		return err
	}
	if added := v.AddedUsers(); len(added) > 0 {
		for _, user := range added {
			log.Info().Stringer("user", user.Ref()).Msg("added user from directory lookup")
		}
		if err := store.SaveUsers(cfg.DataDir, m); err != nil {
			return err
		}
	}
	if len(problems) > 0 {
		return &model.ValidationError{Problems: problems}
	}
	log.Info().Str("data_dir", cfg.DataDir).Msg("validation passed")
	return nil
}

func runUpdate(ctx context.Context, cfg config.Config, client directory.Client, catalog *directory.Catalog, dryRun bool) error {
	desired, _, problems, err := loadAndValidate(ctx, cfg, catalog, nil)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return &model.ValidationError{Problems: problems}
	}

	current, err := sync.Retrieve(ctx, client, catalog)
	if err != nil {
		return err
	}

	engine := &sync.Engine{Client: client, Catalog: catalog, DryRun: dryRun}
	actions, err := engine.Apply(ctx, current, desired)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		log.Info().Msg("directory already matches configuration")
	}
	return nil
}
