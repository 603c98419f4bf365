package main

import (
	"log"
	"os"
	"strings"

	"github.com/breakshot/backend/internal/admin"
	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/database"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	username := os.Getenv("OPERATOR_USERNAME")
	if username == "" {
		username = "operator"
		log.Printf("Using default operator username: %s", username)
	}

	token := os.Getenv("OPERATOR_TOKEN")
	if token == "" {
		token = "change-me-in-production"
		log.Printf("WARNING: Using default operator token. Set OPERATOR_TOKEN env var in production!")
	}

	displayName := "Table Operator"
	roles := []string{"super_admin"}
	allowedIPs := []string{} // empty = allow from any IP
	if v := os.Getenv("OPERATOR_ALLOWED_IPS"); v != "" {
		for _, ip := range strings.Split(v, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				allowedIPs = append(allowedIPs, ip)
			}
		}
	}

	if err := admin.UpsertOperator(db, username, displayName, token, roles, allowedIPs); err != nil {
		log.Fatalf("Failed to create operator account: %v", err)
	}

	log.Printf("Operator account created/updated")
	log.Printf("  Username: %s", username)
	log.Printf("  Roles: %v", roles)
	log.Printf("  Allowed IPs: %v", allowedIPs)
	log.Println("Send X-Operator and X-Operator-Token headers to /api/v1/admin")
}
