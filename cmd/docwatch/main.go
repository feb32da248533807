// docwatch renders markup documents and live-reloads them on change.
package main

import (
	"os"

	"github.com/hupe1980/docwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
