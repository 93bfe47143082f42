package main

import "github.com/siit-dev/lazy-infinite-scroll/cmd"

func main() {
	cmd.Execute()
}
