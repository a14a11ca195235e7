package main

import "github.com/MyCarrier-DevOps/go-gitsituation/cmd"

func main() {
	cmd.Execute()
}
