// Command devtoken prints a signed access token for local testing of the
// seat mutation and provisioning routes.
//
//	devtoken --user alice
//	devtoken --user owner --role OWNER --ttl 120
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/utils"
)

func main() {
	var (
		user   = flag.StringP("user", "u", "", "holder identity placed in the sub claim")
		role   = flag.StringP("role", "r", model.RoleCustomer, "role claim ("+model.RoleOwner+" may provision showings)")
		ttl    = flag.IntP("ttl", "t", 60, "token lifetime in minutes")
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC secret, defaults to $JWT_SECRET")
	)
	flag.Parse()

	if *user == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "devtoken: --user and a secret (--secret or JWT_SECRET) are required")
		flag.Usage()
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(*secret, *user, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
