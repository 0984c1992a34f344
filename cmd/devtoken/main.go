// Command devtoken prints a signed access token for local testing of the
// negotiation API, e.g.
//
//	devtoken -actor client-1 -role CLIENT
package main

import (
    "flag"
    "fmt"
    "log"

    "github.com/iliyamo/marketplace-negotiation/internal/config"
    "github.com/iliyamo/marketplace-negotiation/internal/utils"
)

func main() {
    actor := flag.String("actor", "", "actor id placed in the sub claim")
    role := flag.String("role", "CLIENT", "CLIENT or PROVIDER")
    ttl := flag.Int("ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
    flag.Parse()

    cfg := config.LoadTokenConfig()
    if *ttl <= 0 {
        *ttl = cfg.AccessTTLMin
    }
    tok, err := utils.NewAccessToken(cfg.JWTSecret, *actor, *role, *ttl)
    if err != nil {
        log.Fatalf("devtoken: %v", err)
    }
    fmt.Println(tok.Token)
}
