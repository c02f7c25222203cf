package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := loadConfig()

	// Get subcommand
	subcommand := os.Args[1]

	switch subcommand {
	case "extract":
		os.Exit(handleExtract(cfg, os.Args[2:]))
	case "download":
		os.Exit(handleDownload(cfg, os.Args[2:]))
	case "list":
		handleList(cfg, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("rulings - Discover newly published court rulings")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rulings <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  extract    Discover recent rulings and print the result as JSON")
	fmt.Println("  download   Download a single ruling document")
	fmt.Println("  list       List rulings or runs saved in the local store")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  RULINGS_CONFIG     Path to configuration file (default: ~/.rulings/config.yaml)")
	fmt.Println("  RULINGS_SOURCE     Source to search (default: corte_constitucional)")
	fmt.Println("  RULINGS_LIMIT      Maximum number of rulings (default: 20)")
	fmt.Println("  RULINGS_STORE      Path to the local ruling database")
	fmt.Println("  RULINGS_TIMEOUT    Maximum duration of one run (default: 10m)")
	fmt.Println("  RULINGS_LOG_LEVEL  Log level: debug, info, warn or error")
}
