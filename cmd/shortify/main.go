package main

import "shortify/internal/cli"

func main() {
	cli.Main()
}
