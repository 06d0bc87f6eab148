// Command ragpdf ingests PDF documents into a vector store and answers
// questions over them. It runs one-off operations from the CLI or serves an
// event endpoint that dispatches to the registered RAG functions.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragpdf-go/cmd/ragpdf/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
