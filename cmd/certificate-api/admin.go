package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"certificate-studio/certificate-backend/internal/auth"
	"certificate-studio/certificate-backend/internal/config"
	"certificate-studio/certificate-backend/internal/database"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin account management",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	RunE:  runAdminCreate,
}

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

const minPasswordLength = 8

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "Admin display name")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (will prompt if not provided)")
	adminCreateCmd.MarkFlagRequired("email")

	adminCmd.AddCommand(adminCreateCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	password := adminPassword
	if password == "" {
		if password, err = promptPassword(); err != nil {
			return err
		}
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	name := adminName
	if name == "" {
		name = strings.SplitN(adminEmail, "@", 2)[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout.Duration, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	service := auth.NewService(auth.NewRepository(db), nil, cfg.Security.BcryptCost, logger)
	admin, err := service.Register(ctx, &auth.RegisterRequest{Email: adminEmail, Name: name, Password: password})
	if err != nil {
		return err
	}

	fmt.Printf("Admin %s created (id %s)\n", admin.Email, admin.ID.Hex())
	return nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}

	fmt.Print("Enter password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
