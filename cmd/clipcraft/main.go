package main

import "github.com/forPelevin/clipcraft/internal/cli"

func main() {
	cli.Main()
}
