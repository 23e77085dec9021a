package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"karigari.shop/catalog/internal/auth"
)

func runHashKey(args []string) int {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	key := fs.String("key", "", "API key to hash (reads stdin when omitted)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	value := strings.TrimSpace(*key)
	if value == "" {
		fmt.Fprint(os.Stderr, "API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && value == "" {
			fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
			return 1
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		fmt.Fprintln(os.Stderr, "an API key is required")
		return 2
	}

	hash, err := auth.HashAPIKey(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}

	fmt.Println(hash)
	return 0
}
