// Command token prints a signed bearer token for local testing against the
// API and the websocket endpoint.
package main

import (
	"flag"
	"fmt"
	"os"

	"WardWatchAPI/internal/auth"
	"WardWatchAPI/internal/config"
	"WardWatchAPI/internal/models"
)

func main() {
	user := flag.String("user", "dev-clinician", "user id")
	org := flag.String("org", "", "organization id (required)")
	role := flag.String("role", models.RoleClinician, "role: clinician or admin")
	flag.Parse()

	if *org == "" {
		fmt.Fprintln(os.Stderr, "-org is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	a, err := auth.New(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTExpiration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize authenticator: %v\n", err)
		os.Exit(1)
	}

	token, err := a.Issue(models.Identity{UserID: *user, OrgID: *org, Role: *role})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
