package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

type statusView struct {
	Initialized bool   `json:"initialized"`
	Paused      bool   `json:"paused"`
	Owner       string `json:"owner"`
	FeeBps      uint32 `json:"feeBps"`
}

type orderView struct {
	ID     uint64 `json:"id"`
	Amount string `json:"amount"`
	IsPaid bool   `json:"isPaid"`
}

func newFlagSet(name string, stderr io.Writer, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hgigs-cli %s\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs allows flags before and after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func parseID(kind, raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func runStatusCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("status", stderr, "status")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	resp, err := call(http.MethodGet, "/v1/status", nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runCustodyCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("custody", stderr, "custody [--asset A]")
	asset := fs.String("asset", "", "Asset to report (defaults to NATIVE)")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	path := "/v1/custody"
	if a := strings.TrimSpace(*asset); a != "" {
		path += "?asset=" + a
	}
	resp, err := call(http.MethodGet, path, nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runGigCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hgigs-cli gig <create|get|deactivate> ...")
		return 1
	}
	switch args[0] {
	case "create":
		return runGigCreate(args[1:], stdout, stderr)
	case "get":
		return runGigGet(args[1:], stdout, stderr)
	case "deactivate":
		return runGigDeactivate(args[1:], stdout, stderr)
	default:
		return printError(stderr, fmt.Errorf("unknown gig subcommand %q", args[0]))
	}
}

func runGigCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("gig create", stderr, "gig create --title T --description D --price P [--asset A]")
	title := fs.String("title", "", "Gig title")
	description := fs.String("description", "", "Gig description")
	price := fs.String("price", "", "Price in base units")
	asset := fs.String("asset", "", "Settlement asset (defaults to NATIVE)")
	key := fs.String("idempotency-key", "", "Reuse a key to make retries safe")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	if strings.TrimSpace(*title) == "" || strings.TrimSpace(*description) == "" || strings.TrimSpace(*price) == "" {
		return printError(stderr, errors.New("--title, --description and --price are required"))
	}
	payload := map[string]string{
		"title":       *title,
		"description": *description,
		"price":       strings.TrimSpace(*price),
		"asset":       strings.TrimSpace(*asset),
	}
	resp, err := call(http.MethodPost, "/v1/gigs", payload, true, *key)
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runGigGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("gig get", stderr, "gig get <id>")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	id, err := parseID("gig", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	resp, err := call(http.MethodGet, fmt.Sprintf("/v1/gigs/%d", id), nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runGigDeactivate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("gig deactivate", stderr, "gig deactivate <id>")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	id, err := parseID("gig", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	resp, err := call(http.MethodPost, fmt.Sprintf("/v1/gigs/%d/deactivate", id), nil, true, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runOrderCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hgigs-cli order <open|pay|complete|release|get> ...")
		return 1
	}
	switch args[0] {
	case "open":
		return runOrderOpen(args[1:], stdout, stderr)
	case "pay":
		return runOrderPay(args[1:], stdout, stderr)
	case "complete":
		return runOrderAction("complete", args[1:], stdout, stderr)
	case "release":
		return runOrderAction("release", args[1:], stdout, stderr)
	case "get":
		return runOrderGet(args[1:], stdout, stderr)
	default:
		return printError(stderr, fmt.Errorf("unknown order subcommand %q", args[0]))
	}
}

func runOrderOpen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order open", stderr, "order open <gig-id> [--amount N]")
	amount := fs.String("amount", "", "Pay this amount in the same call")
	key := fs.String("idempotency-key", "", "Reuse a key to make retries safe")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	gigID, err := parseID("gig", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	var payload interface{}
	if a := strings.TrimSpace(*amount); a != "" {
		if err := ensureNotPaused(); err != nil {
			return printError(stderr, err)
		}
		payload = map[string]string{"amount": a}
	}
	resp, err := call(http.MethodPost, fmt.Sprintf("/v1/gigs/%d/orders", gigID), payload, true, *key)
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

// runOrderPay checks the marketplace is live and the order still unpaid
// before moving funds, and defaults the amount to the order's price.
func runOrderPay(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order pay", stderr, "order pay <order-id> [--amount N]")
	amount := fs.String("amount", "", "Amount to pay (defaults to the order amount)")
	key := fs.String("idempotency-key", "", "Reuse a key to make retries safe")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	orderID, err := parseID("order", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	if err := ensureNotPaused(); err != nil {
		return printError(stderr, err)
	}
	var order orderView
	if err := getJSON(fmt.Sprintf("/v1/orders/%d", orderID), &order); err != nil {
		return printError(stderr, err)
	}
	if order.IsPaid {
		return printError(stderr, fmt.Errorf("order %d is already paid", orderID))
	}
	value := strings.TrimSpace(*amount)
	if value == "" {
		value = order.Amount
	}
	resp, err := call(http.MethodPost, fmt.Sprintf("/v1/orders/%d/pay", orderID), map[string]string{"amount": value}, true, *key)
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runOrderAction(action string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order "+action, stderr, fmt.Sprintf("order %s <order-id>", action))
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	orderID, err := parseID("order", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	resp, err := call(http.MethodPost, fmt.Sprintf("/v1/orders/%d/%s", orderID, action), nil, true, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func runOrderGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order get", stderr, "order get <order-id>")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fs.Usage()
		return 1
	}
	orderID, err := parseID("order", positional[0])
	if err != nil {
		return printError(stderr, err)
	}
	resp, err := call(http.MethodGet, fmt.Sprintf("/v1/orders/%d", orderID), nil, false, "")
	if err != nil {
		return printError(stderr, err)
	}
	writeResult(stdout, resp.Body)
	return 0
}

func ensureNotPaused() error {
	var status statusView
	if err := getJSON("/v1/status", &status); err != nil {
		return err
	}
	if !status.Initialized {
		return errors.New("marketplace is not initialized")
	}
	if status.Paused {
		return errors.New("marketplace is paused; payments are suspended")
	}
	return nil
}
