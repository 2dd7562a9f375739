package main

import "github.com/MeKo-Tech/flatscan/cmd/flatscan/cmd"

func main() {
	cmd.Execute()
}
