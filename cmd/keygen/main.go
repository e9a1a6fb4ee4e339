package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"snipewatch/pkg/solana"
)

func main() {
	keystoreDir := flag.String("keystore", solana.DefaultKeystoreDir, "directory for encrypted keystore entries")
	password := flag.String("password", "", "encrypt the new key into the keystore with this password")
	load := flag.String("load", "", "decrypt the keystore entry for this address instead of generating a key")
	flag.Parse()

	km := solana.NewKeyManager(*keystoreDir)

	if *load != "" {
		if *password == "" {
			log.Fatal("-password is required with -load")
		}
		account, err := km.LoadKeyStoreEntry(*load, *password)
		if err != nil {
			log.Fatal(err)
		}
		printAccount(account.PublicKey.ToBase58(), account.PrivateKey)
		return
	}

	account, err := km.GenerateKeyPair()
	if err != nil {
		log.Fatal(err)
	}
	printAccount(account.PublicKey.ToBase58(), account.PrivateKey)

	if *password != "" {
		path, err := km.SaveKeyStoreEntry(account, *password)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(os.Stdout, "Keystore:   %s\n", path)
	}
}

func printAccount(address string, secret []byte) {
	fmt.Fprintf(os.Stdout, "Public key: %s\n", address)
	fmt.Fprintf(os.Stdout, "Secret (JSON array): %s\n", solana.SecretKeyJSON(secret))
	fmt.Fprintf(os.Stdout, "Secret (base58):     %s\n", solana.SecretKeyBase58(secret))
	fmt.Fprintln(os.Stdout, "Set PRIVATE_KEY to either secret form.")
}
