package main

import "github.com/vietddude/atelier/internal/cli"

func main() {
	cli.Execute()
}
