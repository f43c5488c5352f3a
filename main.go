package main

import "github.com/AzielCF/az-amp/cmd"

func main() {
	cmd.Execute()
}
