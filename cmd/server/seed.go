package main

import (
	"encoding/json"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"credauth/backend/internal/config"
	authusecase "credauth/backend/internal/usecase/auth"
)

// defaultSeedUsers is the development data set used when no --file is given.
var defaultSeedUsers = []authusecase.SeedUser{
	{Name: "Admin User", Email: "admin@example.com", Password: "Admin@123"},
	{Name: "John Doe", Email: "john@example.com", Password: "Password@123"},
	{Name: "Jane Smith", Email: "jane@example.com", Password: "Password@123"},
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create initial users",
		Long: `Register the users listed in --file (a JSON array of {"email","password","name"})
or, without --file, a small development set. Users that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := loadSeedUsers(file)
			if err != nil {
				return err
			}
			return runSeed(cmd, users)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the users to create")
	return cmd
}

func loadSeedUsers(path string) ([]authusecase.SeedUser, error) {
	if path == "" {
		return defaultSeedUsers, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	var users []authusecase.SeedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	if len(users) == 0 {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Errorf("no users in seed file")
	}
	return users, nil
}

func runSeed(cmd *cobra.Command, users []authusecase.SeedUser) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.StoreDriver != config.StorePostgres {
		return oops.Code("CONFIG_INVALID").Errorf("seed needs the postgres store; the in-memory store is discarded on exit")
	}

	result, err := a.auth.Seed(cmd.Context(), users)
	for _, email := range result.Created {
		cmd.Printf("created %s\n", email)
	}
	for _, email := range result.Existing {
		cmd.Printf("exists  %s\n", email)
	}
	if err != nil {
		return oops.Code("SEED_FAILED").Wrap(err)
	}
	cmd.Println("Seeding completed successfully")
	return nil
}
