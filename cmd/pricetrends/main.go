package main

import (
	"price-trend-engine/internal/cli"
)

func main() {
	cli.Execute()
}
