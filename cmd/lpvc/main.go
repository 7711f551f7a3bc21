// Command lpvc encodes image sequences into LPVC stream files and back.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpvc:", err)
		os.Exit(1)
	}
}
