package main

import "github.com/jcdickinson/doxsearch/cmd"

func main() {
	cmd.Execute()
}
