package main

import "github.com/oxur/verovioxide-sub000/cmd"

func main() {
	cmd.Execute()
}
