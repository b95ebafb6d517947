package main

import "rubswatch/internal/cli"

func main() {
	cli.Execute()
}
