package main

import "github.com/memguild/memguild/cli"

func main() {
	cli.Execute()
}
