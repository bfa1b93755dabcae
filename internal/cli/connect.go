package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/migration-runner/internal/config"
	"github.com/aqasim81/migration-runner/internal/database"
	"github.com/aqasim81/migration-runner/internal/prompt"
)

// errDatabaseURLRequired is returned when there is neither a URL nor an environment to pick.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, database_url or environments in config)",
)

// newPrompter is replaced in tests.
var newPrompter = func() prompt.Prompter { //nolint:gochecknoglobals // test seam
	return prompt.NewSurvey()
}

// resolveTarget returns the connection URL for this run. ok is false when
// the operator aborted; the reason has already been printed to out.
func resolveTarget(cfg *config.Config, p prompt.Prompter, out io.Writer) (string, bool, error) {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, true, nil
	}

	env, err := chooseEnvironment(cfg, p)
	if errors.Is(err, prompt.ErrCancelled) {
		fmt.Fprintln(out, "Cancelled.")
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	fmt.Fprintf(out, "Target: %s\n", prompt.Paint(env.Color, env.Label()))

	if env.Confirm {
		confirmed, err := p.ConfirmEnvironment(env)
		if errors.Is(err, prompt.ErrCancelled) {
			fmt.Fprintln(out, "Cancelled.")
			return "", false, nil
		}

		if err != nil {
			return "", false, err
		}

		if !confirmed {
			fmt.Fprintln(out, "Confirmation failed. Aborting.")
			return "", false, nil
		}
	}

	password := cfg.Password
	if password == "" {
		password, err = p.Password(env)
		if errors.Is(err, prompt.ErrCancelled) {
			fmt.Fprintln(out, "Cancelled.")
			return "", false, nil
		}

		if err != nil {
			return "", false, err
		}
	}

	if password == "" {
		fmt.Fprintln(out, "No password provided. Aborting.")
		return "", false, nil
	}

	return env.URL(password), true, nil
}

func chooseEnvironment(cfg *config.Config, p prompt.Prompter) (config.Environment, error) {
	if cfg.Env != "" {
		return cfg.Environment(cfg.Env)
	}

	if len(cfg.Environments) == 0 {
		return config.Environment{}, errDatabaseURLRequired
	}

	return p.SelectEnvironment(cfg.Environments)
}

// openSession resolves the target and acquires the single session used for
// the whole run. A nil conn with a nil error means the operator aborted.
func openSession(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Conn, func(), error) {
	dsn, ok, err := resolveTarget(cfg, newPrompter(), out)
	if err != nil || !ok {
		return nil, nil, err
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(dsn))

	conn, release, err := database.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return conn, release, nil
}
