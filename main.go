package main

import "github.com/frahmantamala/account-service/cmd"

func main() {
	cmd.Execute()
}
