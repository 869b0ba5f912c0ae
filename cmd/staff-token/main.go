// Command staff-token mints a signed bearer token for a door volunteer or
// an admin, using the JWT secret from the environment.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/jwt"
)

func main() {
	var (
		staffID = pflag.String("id", "", "staff id stored in the token subject")
		name    = pflag.String("name", "", "display name recorded as the actor of check-ins")
		role    = pflag.String("role", jwt.RoleVolunteer, "ADMIN or VOLUNTEER")
	)
	pflag.Parse()

	if err := run(os.Stdout, *staffID, *name, *role); err != nil {
		fmt.Fprintln(os.Stderr, "staff-token:", err)
		os.Exit(2)
	}
}

func run(out io.Writer, staffID, name, role string) error {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return fmt.Errorf("--id is required")
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != jwt.RoleAdmin && role != jwt.RoleVolunteer {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg := config.Load()
	token, err := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL).GenerateToken(staffID, strings.TrimSpace(name), role)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
