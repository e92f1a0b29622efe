package main

import "apk-installer/internal/cli"

func main() {
	cli.Execute()
}
