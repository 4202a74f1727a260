package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hgigs/cmd/internal/passphrase"
	"hgigs/crypto"
	"hgigs/rpc"
)

const (
	defaultKeystorePath = "hgigs-key.json"
	defaultPassEnv      = "HGIGS_KEYSTORE_PASS"
	jwtSecretEnv        = "HGIGS_JWT_SECRET"
)

func runGenerateKeyCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr, "generate-key [--keystore FILE] [--pass-env VAR]")
	path := fs.String("keystore", defaultKeystorePath, "Keystore file to create")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable holding the passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	if !*force {
		if _, err := os.Stat(*path); err == nil {
			return printError(stderr, fmt.Errorf("%s already exists; pass --force to replace it", *path))
		}
	}
	pass, err := passphrase.NewSource(*passEnv, "keystore").Get()
	if err != nil {
		return printError(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err)
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return printError(stderr, fmt.Errorf("failed to save keystore: %w", err))
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", *path)
	fmt.Fprintf(stdout, "Your principal is: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddressCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr, "address --keystore FILE")
	path := fs.String("keystore", defaultKeystorePath, "Keystore file to inspect")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	addr, err := crypto.KeystoreAddress(*path)
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintln(stdout, addr.String())
	return 0
}

// runTokenCommand mints a development bearer token signed with the shared
// secret from HGIGS_JWT_SECRET.
func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr, "token (--subject ADDR | --keystore FILE) [--ttl 1h]")
	subject := fs.String("subject", "", "Principal the token authenticates")
	keystorePath := fs.String("keystore", "", "Read the principal from this keystore")
	issuer := fs.String("issuer", "", "Token issuer")
	audience := fs.String("audience", "", "Token audience")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	sub := strings.TrimSpace(*subject)
	if sub == "" && strings.TrimSpace(*keystorePath) != "" {
		addr, err := crypto.KeystoreAddress(*keystorePath)
		if err != nil {
			return printError(stderr, err)
		}
		sub = addr.String()
	}
	if sub == "" {
		return printError(stderr, errors.New("--subject or --keystore required"))
	}
	secret := os.Getenv(jwtSecretEnv)
	if strings.TrimSpace(secret) == "" {
		return printError(stderr, fmt.Errorf("%s must be set", jwtSecretEnv))
	}
	token, err := rpc.IssueToken(secret, *issuer, *audience, sub, *ttl)
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
