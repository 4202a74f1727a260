package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Defaults to localhost; overridden by RPC_URL or --rpc.
var rpcEndpoint = defaultRPCEndpoint()

// Bearer token for privileged calls; overridden by --token.
var rpcAuthToken = strings.TrimSpace(os.Getenv("HGIGS_TOKEN"))

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	rest := args[1:]
	switch args[0] {
	case "status":
		return runStatusCommand(rest, stdout, stderr)
	case "custody":
		return runCustodyCommand(rest, stdout, stderr)
	case "gig":
		return runGigCommand(rest, stdout, stderr)
	case "order":
		return runOrderCommand(rest, stdout, stderr)
	case "deposit":
		return runDepositCommand(rest, stdout, stderr)
	case "balance":
		return runBalanceCommand(rest, stdout, stderr)
	case "events":
		return runEventsCommand(rest, stdout, stderr)
	case "export":
		return runExportCommand(rest, stdout, stderr)
	case "admin":
		return runAdminCommand(rest, stdout, stderr)
	case "generate-key":
		return runGenerateKeyCommand(rest, stdout, stderr)
	case "address":
		return runAddressCommand(rest, stdout, stderr)
	case "token":
		return runTokenCommand(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if env := strings.TrimSpace(os.Getenv("RPC_URL")); env != "" {
		return env
	}
	return "http://localhost:8080"
}

// applyGlobalFlags strips --rpc and --token from anywhere before the
// subcommand and returns the remaining arguments.
func applyGlobalFlags(args []string) ([]string, error) {
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(remaining) > 0 {
			remaining = append(remaining, arg)
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--rpc", "-rpc", "--token", "-token":
		default:
			remaining = append(remaining, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("%s requires a value", name)
		}
		if strings.HasSuffix(name, "rpc") {
			rpcEndpoint = value
		} else {
			rpcAuthToken = value
		}
	}
	return remaining, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hgigs-cli [--rpc URL] [--token JWT] <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Marketplace:")
	fmt.Fprintln(w, "  status                                  Show marketplace status")
	fmt.Fprintln(w, "  custody [--asset A]                     Show escrowed custody balance")
	fmt.Fprintln(w, "  gig create --title T --description D --price P [--asset A]")
	fmt.Fprintln(w, "  gig get <id>")
	fmt.Fprintln(w, "  gig deactivate <id>")
	fmt.Fprintln(w, "  order open <gig-id> [--amount N]        Open an order, paying immediately when --amount is set")
	fmt.Fprintln(w, "  order pay <order-id> [--amount N]       Pay an open order; defaults to the order amount")
	fmt.Fprintln(w, "  order complete <order-id>")
	fmt.Fprintln(w, "  order release <order-id>")
	fmt.Fprintln(w, "  order get <order-id>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Accounts:")
	fmt.Fprintln(w, "  balance <address> [--asset A]")
	fmt.Fprintln(w, "  deposit <address> --amount N [--asset A]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Administration:")
	fmt.Fprintln(w, "  admin pause | admin unpause")
	fmt.Fprintln(w, "  admin owner <address>")
	fmt.Fprintln(w, "  admin fee <bps>")
	fmt.Fprintln(w, "  events [--after N] [--limit N]")
	fmt.Fprintln(w, "  export [--format csv|jsonl|parquet] [--out FILE]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Keys:")
	fmt.Fprintln(w, "  generate-key [--keystore FILE] [--pass-env VAR]")
	fmt.Fprintln(w, "  address --keystore FILE")
	fmt.Fprintln(w, "  token (--subject ADDR | --keystore FILE) [--ttl 1h] [--issuer I] [--audience A]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment: RPC_URL, HGIGS_TOKEN, HGIGS_JWT_SECRET")
}
