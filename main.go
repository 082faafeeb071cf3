package main

import "github.com/arcward/hearth/cmd"

func main() {
	cmd.Execute()
}
