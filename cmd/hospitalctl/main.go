// Command hospitalctl imports hospital CSV files from the command line and
// inspects the import history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "error:", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	os.Exit(exitUsage)
}
