package main

import "github.com/evswap/stationd/cmd"

func main() {
	cmd.Execute()
}
