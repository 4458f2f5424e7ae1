package main

import "apfs-inspect/cmd"

func main() {
	cmd.Execute()
}
