package app

import (
	"context"
	"errors"
	"fmt"

	"rubswatch/internal/ingest"
)

// Import upserts the usage readings of one file into the database.
func (a *App) Import(ctx context.Context, usagePath string) error {
	if usagePath == "" {
		return errors.New("--usage is required")
	}

	properties, err := ingest.LoadUsage(usagePath)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx, "import usage")
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.UpsertReadings(ctx, properties)
	if err != nil {
		return err
	}

	a.Logger.Info().Int("properties", len(properties)).Int("readings", n).Msg("usage imported")
	fmt.Fprintf(a.Out, "imported %d readings for %d properties\n", n, len(properties))
	return nil
}

// Migrate applies the SQL migrations from the configured directory.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx, "migrate")
	if err != nil {
		return err
	}
	defer closeStore()

	applied, err := store.Migrate(ctx, a.Config.Database.MigrationsPath)
	if err != nil {
		return err
	}
	for _, name := range applied {
		a.Logger.Info().Str("migration", name).Msg("migration applied")
	}
	fmt.Fprintf(a.Out, "applied %d migrations from %s\n", len(applied), a.Config.Database.MigrationsPath)
	return nil
}
