// Command tokengen mints session tokens for local development and
// operational access. The signing key comes from the same environment
// variable the server reads.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fedoffice/internal/platform/config"
	"fedoffice/internal/platform/sessions"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/requestcontext"
)

func main() {
	role := flag.String("role", requestcontext.RoleClub, "token role: club or admin")
	club := flag.String("club", "", "club id, required for club tokens")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.FromEnv()
	issuer := sessions.NewIssuer(cfg.JWTSigningKey, *ttl)

	var (
		token string
		err   error
	)
	switch *role {
	case requestcontext.RoleAdmin:
		token, err = issuer.IssueAdminToken()
	case requestcontext.RoleClub:
		var clubID id.ClubID
		clubID, err = id.ParseClubID(*club)
		if err == nil {
			token, err = issuer.IssueClubToken(clubID)
		}
	default:
		err = fmt.Errorf("unknown role %q", *role)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
