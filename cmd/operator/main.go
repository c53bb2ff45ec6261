package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/internal/pkg/apikey"
	"github.com/ManuelReschke/ChatFox/internal/pkg/database"
	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
)

// Creates an operator and prints its API key once. The key is only stored hashed.
func main() {
	env.SetupEnvFile()

	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	tenantID, err := strconv.ParseUint(os.Args[1], 10, 64)
	if err != nil || tenantID == 0 {
		log.Fatalf("Invalid tenant id: %s", os.Args[1])
	}
	name := strings.TrimSpace(os.Args[2])
	role := models.OPERATOR_ROLE_AGENT
	if len(os.Args) > 3 && os.Args[3] == models.OPERATOR_ROLE_ADMIN {
		role = models.OPERATOR_ROLE_ADMIN
	}

	database.SetupDatabase()
	repos := repository.NewRepositories(database.GetDB())

	key, err := apikey.New()
	if err != nil {
		log.Fatalf("Generating API key failed: %v", err)
	}
	op := &models.Operator{
		TenantID:   uint(tenantID),
		Name:       name,
		Role:       role,
		Status:     models.STATUS_ACTIVE,
		APIKeyHash: key.Hash,
	}
	if err := repos.Operator.Create(context.Background(), op); err != nil {
		log.Fatalf("Creating operator failed: %v", err)
	}
	fmt.Printf("Operator %d (%s, %s) for tenant %d\nAPI key: %s\n", op.ID, op.Name, op.Role, op.TenantID, key.Plain)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/operator/main.go <tenant-id> <name> [agent|admin]")
}
