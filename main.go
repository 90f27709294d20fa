package main

import "alarm-dashboard/cmd"

func main() {
	cmd.Execute()
}
