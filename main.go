package main

import "github.com/frahmantamala/admin-lite-gateway/cmd"

func main() {
	cmd.Execute()
}
