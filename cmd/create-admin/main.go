package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/database"
	"github.com/stemsi/exstem-assess/internal/logger"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stemsi/exstem-assess/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	// The auth service is only used for password hashing here, so it needs no Redis.
	adminService := service.NewAdminService(
		repository.NewAdminRepository(pool),
		service.NewAuthService(cfg, nil),
	)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	username := prompt(reader, "Enter Username: ")
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	email := prompt(reader, "Enter Email: ")
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	fmt.Printf("Domains, comma separated (%s; empty for all): ", strings.Join(domainNames(), ", "))
	scope, err := parseScope(prompt(reader, ""))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	admin, err := adminService.Create(ctx, username, email, password, scope)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID: %d, domains: %v\n",
		admin.Username, admin.Email, admin.ID, admin.Scope().Domains())
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// parseScope turns "web_dev, ml" into a domain scope. Empty input grants all domains.
func parseScope(raw string) (model.AdminScope, error) {
	if strings.TrimSpace(raw) == "" {
		return model.AllDomainsScope(), nil
	}
	var domains []model.Domain
	for _, part := range strings.Split(raw, ",") {
		d, err := model.ParseDomain(strings.TrimSpace(part))
		if err != nil {
			return model.AdminScope{}, err
		}
		domains = append(domains, d)
	}
	return model.DomainSetScope(domains...), nil
}

func domainNames() []string {
	names := make([]string, 0, len(model.AllDomains))
	for _, d := range model.AllDomains {
		names = append(names, string(d))
	}
	return names
}
