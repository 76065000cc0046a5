package main

import (
	"shieldvpn/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
