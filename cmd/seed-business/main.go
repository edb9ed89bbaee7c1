// seed-business provisions a tenant with its first warehouse and an owner
// user, then prints the generated business id. Intended for new deployments
// and local development.
//
// Usage:
//   go run ./cmd/seed-business -name "Acme Factory" -username owner -password 'secret123!'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/joho/godotenv"
)

func main() {
	name := flag.String("name", "", "Business name (required)")
	timezone := flag.String("timezone", "", "IANA timezone, defaults to Asia/Yangon")
	username := flag.String("username", "", "Owner username (required)")
	password := flag.String("password", "", "Owner password, min 8 chars (required)")
	ownerName := flag.String("owner-name", "", "Owner display name")
	flag.Parse()

	if *name == "" || *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := models.Migrate(config.GetDB()); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:     *name,
		Timezone: *timezone,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
		os.Exit(1)
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		BusinessId: business.ID,
		Username:   *username,
		Password:   *password,
		Name:       *ownerName,
		Role:       models.UserRoleOwner,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create owner user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("business %q created with id %s\n", business.Name, business.ID)
	fmt.Printf("owner user %q created with id %d\n", user.Username, user.ID)
}
