package main

import "github.com/zhhtdm/lzhbrowser/cmd"

func main() {
	cmd.Execute()
}
