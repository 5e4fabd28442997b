// The main package for the leadsd executable.
package main

import (
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/cmd"
)

func main() {
	cmd.Execute()
}
