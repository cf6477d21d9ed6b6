package main

import "github.com/dmitrijs2005/wopihost/internal/client/cli"

func main() {
	cli.Execute()
}
