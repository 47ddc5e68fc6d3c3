// The main package for the catalog executable.
package main

import (
	"github.com/JakeFAU/normattiva-catalog/cmd"
)

func main() {
	cmd.Execute()
}
