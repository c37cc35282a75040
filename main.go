package main

import "go-sniper/cmd"

func main() {
	cmd.Execute()
}
