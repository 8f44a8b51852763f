package main

import "github.com/Kilat-Pet-Delivery/service-adoption/cmd/adoptionctl/commands"

func main() {
	commands.Execute()
}
