package main

import "github.com/capsulemail/capsuled/cmd"

func main() {
	cmd.Execute()
}
