package main

import "github.com/guildforge/guildhall/internal/cli"

func main() {
	cli.Execute()
}
