package main

import "github.com/dbsmedya/metaport/cmd/metaport/cmd"

func main() {
	cmd.Execute()
}
