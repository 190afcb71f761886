package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/container"
	"github.com/the-bazaar/bazaar-backend/internal/database"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
	"gopkg.in/yaml.v3"
)

type SeedData struct {
	Staff  []Account `yaml:"staff"`
	Users  []Account `yaml:"users"`
	Orders []Order   `yaml:"orders"`
}

type Account struct {
	Email              string   `yaml:"email"`
	Password           string   `yaml:"password"`
	FullName           string   `yaml:"full_name"`
	Role               string   `yaml:"role"`
	Permissions        []string `yaml:"permissions,omitempty"`
	MustChangePassword bool     `yaml:"must_change_password"`
}

type Order struct {
	BuyerEmail  string `yaml:"buyer_email"`
	VendorEmail string `yaml:"vendor_email"`
	Reference   string `yaml:"reference"`
	TotalKobo   int64  `yaml:"total_kobo"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("command required")
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "seed":
		return seedCommand(args)
	case "nuke":
		return nukeCommand(args)
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func seedCommand(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "", "YAML file to seed from")
	dir := fs.String("dir", "", "Directory of YAML files to seed from")
	dryRun := fs.Bool("dry-run", false, "Validate files without making changes")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		return err
	}

	seedData, err := loadSeedData(files)
	if err != nil {
		return fmt.Errorf("failed to load seed data: %w", err)
	}

	if err := validateSeedData(seedData); err != nil {
		return err
	}
	if *dryRun {
		fmt.Println("dry run: data structure is valid")
		return nil
	}

	cfg := config.Load()
	store, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer store.Close()

	provider, err := container.NewIdentityProvider(cfg.Identity)
	if err != nil {
		return err
	}

	fmt.Printf("seeding from %d file(s)\n", len(files))
	s := &seeder{provider: provider, store: store, ids: make(map[string]uuid.UUID)}
	return s.apply(context.Background(), seedData)
}

func nukeCommand(args []string) error {
	fs := flag.NewFlagSet("nuke", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if !*force && !confirmNuke() {
		fmt.Println("operation cancelled")
		return nil
	}

	return nukeDatabase()
}

func resolveFiles(file, dir string) ([]string, error) {
	if file == "" && dir == "" {
		return nil, errors.New("must specify either --file or --dir")
	}
	if file != "" && dir != "" {
		return nil, errors.New("cannot specify both --file and --dir")
	}
	if file != "" {
		return []string{file}, nil
	}
	return findYAMLFiles(dir)
}

func findYAMLFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAMLFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files found in directory: %s", dir)
	}
	return files, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func loadSeedData(files []string) (*SeedData, error) {
	combined := &SeedData{}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}

		var fileData SeedData
		if err := yaml.Unmarshal(data, &fileData); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in %s: %w", file, err)
		}

		combined.Staff = append(combined.Staff, fileData.Staff...)
		combined.Users = append(combined.Users, fileData.Users...)
		combined.Orders = append(combined.Orders, fileData.Orders...)
	}

	return combined, nil
}

// validateSeedData checks roles and references before anything is written;
// a half-applied seed leaves provider accounts behind.
func validateSeedData(data *SeedData) error {
	var problems []string
	seen := make(map[string]bool)

	check := func(kind string, a Account, allowed func(rbac.Role) bool) {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		switch {
		case email == "":
			problems = append(problems, kind+": email is required")
			return
		case seen[email]:
			problems = append(problems, fmt.Sprintf("%s %s: duplicate email", kind, email))
		}
		seen[email] = true

		role, ok := rbac.ParseRole(a.Role)
		if !ok || !allowed(role) {
			problems = append(problems, fmt.Sprintf("%s %s: role %q not allowed", kind, email, a.Role))
		}
		if len(a.Password) < config.StaffPasswordMinLength {
			problems = append(problems, fmt.Sprintf("%s %s: password shorter than %d characters", kind, email, config.StaffPasswordMinLength))
		}
		for _, p := range a.Permissions {
			if !rbac.IsKnownPermission(rbac.Permission(p)) {
				problems = append(problems, fmt.Sprintf("%s %s: unknown permission %q", kind, email, p))
			}
		}
	}

	for _, a := range data.Staff {
		check("staff", a, rbac.Role.IsAdminRole)
	}
	for _, a := range data.Users {
		check("user", a, rbac.Role.IsMarketplaceRole)
	}
	for i, o := range data.Orders {
		if !seen[strings.ToLower(o.BuyerEmail)] || !seen[strings.ToLower(o.VendorEmail)] {
			problems = append(problems, fmt.Sprintf("order %d: buyer and vendor must be seeded users", i))
		}
		if o.TotalKobo <= 0 {
			problems = append(problems, fmt.Sprintf("order %d: total_kobo must be positive", i))
		}
	}

	fmt.Printf("  Staff: %d\n", len(data.Staff))
	fmt.Printf("  Users: %d\n", len(data.Users))
	fmt.Printf("  Orders: %d\n", len(data.Orders))

	if len(problems) > 0 {
		return fmt.Errorf("invalid seed data:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

type seeder struct {
	provider identity.Provider
	store    *database.Database
	// email -> profile id
	ids map[string]uuid.UUID
}

func (s *seeder) apply(ctx context.Context, data *SeedData) error {
	for _, a := range data.Staff {
		if err := s.account(ctx, a, true); err != nil {
			return err
		}
	}
	for _, a := range data.Users {
		if err := s.account(ctx, a, false); err != nil {
			return err
		}
	}

	queries := s.store.Queries()
	for _, o := range data.Orders {
		var ref *string
		if o.Reference != "" {
			ref = &o.Reference
		}
		order, err := queries.CreateOrder(ctx, db.CreateOrderParams{
			BuyerID:          s.ids[strings.ToLower(o.BuyerEmail)],
			VendorID:         s.ids[strings.ToLower(o.VendorEmail)],
			PaymentReference: ref,
			TotalKobo:        o.TotalKobo,
		})
		if err != nil {
			return fmt.Errorf("failed to create order for %s: %w", o.BuyerEmail, err)
		}
		fmt.Printf("created order: %s\n", order.ID)
	}

	fmt.Println("seeding completed")
	return nil
}

// account creates the provider identity and its profile. Re-running the seed
// reuses identities that already exist.
func (s *seeder) account(ctx context.Context, a Account, staff bool) error {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	queries := s.store.Queries()

	user, err := s.provider.CreateUser(ctx, identity.AdminUserParams{
		Email:        email,
		Password:     a.Password,
		EmailConfirm: true,
		AppMetadata:  map[string]any{"role": a.Role},
		UserMetadata: map[string]any{"full_name": a.FullName},
	})
	var id uuid.UUID
	switch {
	case errors.Is(err, identity.ErrUserExists):
		profile, err := queries.GetProfileByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("%s exists with the provider but has no profile: %w", email, err)
		}
		id = profile.ID
		fmt.Printf("exists: %s\n", email)
	case err != nil:
		return fmt.Errorf("failed to create identity %s: %w", email, err)
	default:
		id = user.ID
	}
	s.ids[email] = id

	err = s.store.InTx(ctx, func(q *db.Queries) error {
		if _, err := q.UpsertProfile(ctx, db.UpsertProfileParams{
			ID:                 id,
			Email:              email,
			FullName:           a.FullName,
			Role:               a.Role,
			MustChangePassword: a.MustChangePassword,
		}); err != nil {
			return fmt.Errorf("writing profile: %w", err)
		}
		if !staff {
			return nil
		}

		if _, err := q.GetAdminStaff(ctx, id); err == nil {
			return nil
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reading staff record: %w", err)
		}
		_, err := q.CreateAdminStaff(ctx, db.CreateAdminStaffParams{
			ProfileID:           id,
			Role:                a.Role,
			PermissionsOverride: a.Permissions,
		})
		if err != nil {
			return fmt.Errorf("writing staff record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed %s: %w", email, err)
	}

	fmt.Printf("seeded %s: %s\n", a.Role, email)
	return nil
}

func nukeDatabase() error {
	cfg := config.Load()

	sqlDB, err := goose.OpenDBWithDriver("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			fmt.Printf("warning: failed to close database: %v\n", err)
		}
	}()

	fmt.Println("rolling back all migrations...")
	if err := goose.Reset(sqlDB, "db/migrations"); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}

	fmt.Println("applying all migrations...")
	if err := goose.Up(sqlDB, "db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	fmt.Println("database reset complete; provider accounts were not touched")
	return nil
}

func confirmNuke() bool {
	fmt.Print("warning: this will delete all data from the database. are you sure? (yes/no): ")

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}

	return strings.ToLower(strings.TrimSpace(response)) == "yes"
}

func printUsage() {
	fmt.Println("Seeder Tool - Database seeding utility for The Bazaar")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  seeder <command> [flags]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  seed        Create staff, marketplace users and orders from YAML files")
	fmt.Println("  nuke        Delete all data from database")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("SEED FLAGS:")
	fmt.Println("  --file      Path to a single YAML file")
	fmt.Println("  --dir       Path to directory containing YAML files")
	fmt.Println("  --dry-run   Validate files without making changes")
	fmt.Println()
	fmt.Println("NUKE FLAGS:")
	fmt.Println("  --force     Skip confirmation prompt")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  seeder seed --file seed/dev.yaml")
	fmt.Println("  seeder seed --dir ./seed/ --dry-run")
	fmt.Println("  seeder nuke --force")
}
