package main

import "github.com/reviewapps-dev/wfpack/internal/cli"

func main() {
	cli.Execute()
}
