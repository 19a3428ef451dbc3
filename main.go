package main

import "github.com/FlipperPlz/BankProcessor/cmd"

func main() {
	cmd.Execute()
}
