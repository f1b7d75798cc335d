package main

import (
	"os"

	"catalog-feed-miner/cmd/feedminer/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
