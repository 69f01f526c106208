package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ride-convoy/internal/cli"
)

func main() {
	var (
		riderID = flag.String("rider-id", "", "Rider id (subject)")
		name    = flag.String("name", "", "Display name carried in the token")
		role    = flag.String("role", "RIDER", "Rider role: RIDER | ADMIN")
		secret  = flag.String("secret", os.Getenv("JWT_SECRET_KEY"), "JWT HMAC secret (HS256)")
		ttl     = flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *riderID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --rider-id=<id> [--name=Ana] [--role=RIDER] --secret='<secret>' [--ttl=12h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateRiderToken(*secret, *ttl, *riderID, *name, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  name: %s\n", claims.DisplayName)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
