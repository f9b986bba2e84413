package main

import "registry-core/internal/cli"

func main() {
	cli.Execute()
}
