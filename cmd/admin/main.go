// Command admin bootstraps a superuser account. It runs migrations first, so
// it can be pointed at a fresh database.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"github.com/dmitrijs2005/vaultshare/internal/flagx"
	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/config"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultshare/internal/server/services"
)

func main() {
	// config flags share os.Args with ours, so parse only what we own
	args := flagx.FilterArgs(os.Args[1:], []string{"-username", "-email"})

	var userName, email string
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.StringVar(&userName, "username", "", "superuser login")
	fs.StringVar(&email, "email", "", "superuser email")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(userName, email); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(userName, email string) error {
	ctx := context.Background()
	cfg := config.LoadConfig()

	reader := bufio.NewReader(os.Stdin)
	if userName == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		userName = strings.TrimSpace(line)
	}
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		email = strings.TrimSpace(line)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	users := services.NewUserService(db, rm, cfg, logger)

	u, err := users.CreateSuperuser(ctx, userName, email, password)
	if err != nil {
		return fmt.Errorf("creating superuser: %w", err)
	}

	fmt.Printf("superuser %s created (id %s)\n", u.UserName, u.ID)
	return nil
}

func readPassword() (string, error) {
	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Print("Repeat password: ")
	pw2, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(pw) != string(pw2) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}
