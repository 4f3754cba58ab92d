package main

import (
	"flag"
	"log"
	"os"

	"hidden_mines/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// dev_token prints a JWT for an actor, generating a throwaway wallet when
// no address is given. Expects JWT_SECRET.
func main() {
	actorFlag := flag.String("actor", "", "hex address to issue the token for")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	var actor common.Address
	switch {
	case *actorFlag != "":
		if !common.IsHexAddress(*actorFlag) {
			log.Fatalf("invalid address %q", *actorFlag)
		}
		actor = common.HexToAddress(*actorFlag)
	default:
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		actor = crypto.PubkeyToAddress(key.PublicKey)
		log.Printf("generated wallet address=%s private_key=%x\n", actor.Hex(), crypto.FromECDSA(key))
	}

	token, err := service.GenerateJWT(actor)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	log.Printf("actor=%s\n", actor.Hex())
	log.Printf("token=%s\n", token)
}
