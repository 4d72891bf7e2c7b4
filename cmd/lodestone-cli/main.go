package main

import (
	"lodestone/internal/cli/cmd"
	"lodestone/internal/config"
)

func main() {
	port := config.GetPort()
	cmd.Execute(port)
}
