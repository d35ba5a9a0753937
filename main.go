package main

import "github.com/Mohsinsiddi/idodeploy/cmd"

func main() {
	cmd.Execute()
}
