package main

import cmd "github.com/orderstats-go/orderstats/cmd/orderstats"

func main() {
	cmd.Execute()
}
