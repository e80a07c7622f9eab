package cli

import (
	"fmt"
	"os"
)

const VERSION = "1.0.0"

const helpMessage = "\033[30mresolve.sh - Node-style module resolution as a library and CLI.\033[0m" + `

Usage: resolve.sh [command] [options]

Commands:
  resolve <specifier> [importer]   Resolve a module specifier to a file on disk

Options:
  --version, -v         Show the version
  --help, -h            Display this help message
`

func Run() {
	if len(os.Args) < 2 {
		fmt.Print(helpMessage)
		return
	}
	switch command := os.Args[1]; command {
	case "resolve":
		Resolve()
	case "version":
		fmt.Println("resolve.sh CLI " + VERSION)
	default:
		for _, arg := range os.Args[1:] {
			if arg == "--version" {
				fmt.Println("resolve.sh CLI " + VERSION)
				return
			}
			if arg == "-v" {
				fmt.Println(VERSION)
				return
			}
		}
		fmt.Print(helpMessage)
	}
}
