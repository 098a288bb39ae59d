package main

import (
	"fmt"

	"reservoir/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd.Execute(fmt.Sprintf("%s-%s", version, commit))
}
