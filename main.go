package main

import "github.com/hrcore/leave-management/cmd"

func main() {
	cmd.Execute()
}
