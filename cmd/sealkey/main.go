// Command sealkey generates a random session seal key for the gateway.
// Put the output in SESSION_SEAL_KEY before first start; rotating the
// key invalidates every persisted session.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/campushq/registra/internal/session"
)

func main() {
	export := flag.Bool("export", false, "print as a shell export statement")
	flag.Parse()

	key, err := session.GenerateSealKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	if *export {
		fmt.Printf("export SESSION_SEAL_KEY=%s\n", key)
		return
	}
	fmt.Println(key)
}
