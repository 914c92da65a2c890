// Command tokengen prints a participant token signed with the hub secret, for local testing.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/meethub/internal/adapters/auth"
	"github.com/dkeye/meethub/internal/domain"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	secret := pflag.StringP("secret", "s", os.Getenv("MEETHUB_AUTH_SECRET"), "signing secret")
	issuer := pflag.String("issuer", "", "iss claim")
	user := pflag.StringP("user", "u", "", "user id")
	name := pflag.StringP("name", "n", "", "username")
	role := pflag.StringP("role", "r", string(domain.RoleParticipant), "host|cohost|participant|guest")
	ttl := pflag.Duration("ttl", 12*time.Hour, "token lifetime")
	pflag.Parse()

	if *secret == "" || *user == "" {
		pflag.Usage()
		os.Exit(2)
	}

	v := auth.NewJWTVerifier(*secret, *issuer)
	tok, err := v.Sign(domain.Identity{
		UserID:   domain.UserID(*user),
		Username: *name,
		Role:     domain.Role(*role),
	}, jwt.MapClaims{"exp": time.Now().Add(*ttl).Unix()})
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(tok)
}
