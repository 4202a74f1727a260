package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"hgigs/crypto"
)

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hgigs-cli admin <pause|unpause|owner|fee> ...")
		return 1
	}
	var payload interface{}
	path := "/v1/admin/" + args[0]
	switch args[0] {
	case "pause", "unpause":
		if len(args) != 1 {
			return printError(stderr, fmt.Errorf("admin %s takes no arguments", args[0]))
		}
	case "owner":
		if len(args) != 2 {
			return printError(stderr, errors.New("usage: admin owner <address>"))
		}
		if _, err := crypto.ParsePrincipal(args[1]); err != nil {
			return printError(stderr, fmt.Errorf("invalid owner: %w", err))
		}
		payload = map[string]string{"owner": args[1]}
	case "fee":
		if len(args) != 2 {
			return printError(stderr, errors.New("usage: admin fee <bps>"))
		}
		bps, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil || bps > 10000 {
			return printError(stderr, fmt.Errorf("fee must be between 0 and 10000 basis points"))
		}
		payload = map[string]uint32{"feeBps": uint32(bps)}
	default:
		return printError(stderr, fmt.Errorf("unknown admin subcommand %q", args[0]))
	}
	resp, err := call(http.MethodPost, path, payload, true, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runBalanceCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr, "balance <address> [--asset A]")
	asset := fs.String("asset", "", "Asset to report (defaults to NATIVE)")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	path := "/v1/accounts/" + url.PathEscape(positional[0]) + "/balance"
	if a := strings.TrimSpace(*asset); a != "" {
		path += "?asset=" + url.QueryEscape(a)
	}
	resp, err := call(http.MethodGet, path, nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runDepositCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deposit", stderr, "deposit <address> --amount N [--asset A]")
	amount := fs.String("amount", "", "Amount in base units")
	asset := fs.String("asset", "", "Asset to credit (defaults to NATIVE)")
	key := fs.String("idempotency-key", "", "Reuse a key to make retries safe")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 || strings.TrimSpace(*amount) == "" {
		fs.Usage()
		return 1
	}
	payload := map[string]string{"amount": strings.TrimSpace(*amount), "asset": strings.TrimSpace(*asset)}
	path := "/v1/accounts/" + url.PathEscape(positional[0]) + "/deposit"
	resp, err := call(http.MethodPost, path, payload, true, *key)
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr, "events [--after N] [--limit N]")
	after := fs.Uint64("after", 0, "Return events after this sequence number")
	limit := fs.Int("limit", 0, "Maximum events to return")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	query := url.Values{}
	if *after > 0 {
		query.Set("after", strconv.FormatUint(*after, 10))
	}
	if *limit > 0 {
		query.Set("limit", strconv.Itoa(*limit))
	}
	path := "/v1/events"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	resp, err := call(http.MethodGet, path, nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

// runExportCommand downloads the settlement export and checks the body
// against the checksum advertised by the server.
func runExportCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr, "export [--format csv|jsonl|parquet] [--out FILE]")
	format := fs.String("format", "csv", "Export format")
	out := fs.String("out", "", "Output file (defaults to settlements.<format>)")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	f := strings.ToLower(strings.TrimSpace(*format))
	resp, err := call(http.MethodGet, "/v1/exports/settlements?format="+url.QueryEscape(f), nil, true, "")
	if err != nil {
		return printError(stderr, err)
	}
	digest := sha256.Sum256(resp.Body)
	sum := hex.EncodeToString(digest[:])
	if advertised := resp.Header.Get("X-Checksum-SHA256"); advertised != "" && !strings.EqualFold(advertised, sum) {
		return printError(stderr, fmt.Errorf("checksum mismatch: server %s, received %s", advertised, sum))
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		path = "settlements." + f
	}
	if err := os.WriteFile(path, resp.Body, 0o600); err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintf(stdout, "Wrote %d bytes to %s\n", len(resp.Body), path)
	fmt.Fprintf(stdout, "SHA-256: %s\n", sum)
	return 0
}
