package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "merge":
		return runMerge(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "set-default-image":
		return runSetDefaultImage(args[1:])
	case "product":
		return runProduct(args[1:])
	case "hash-key":
		return runHashKey(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "catalog CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  catalog <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health             Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest             Resolve one upload payload into catalog rows")
	fmt.Fprintln(os.Stderr, "  merge              Merge one product aggregate into another")
	fmt.Fprintln(os.Stderr, "  dedup              Run the image dedup pass over one product")
	fmt.Fprintln(os.Stderr, "  set-default-image  Flip the default flag on one image")
	fmt.Fprintln(os.Stderr, "  product            Print one product with variants and images")
	fmt.Fprintln(os.Stderr, "  hash-key           Produce a bcrypt hash for API_KEY_HASHES")
	fmt.Fprintln(os.Stderr, "  serve              Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"catalog <command> -h\" for command-specific flags.")
}
