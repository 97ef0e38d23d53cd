package main

import "github.com/vietddude/tryon/internal/cli"

func main() {
	cli.Execute()
}
