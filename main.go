package main

import "github.com/shandysiswandi/gosampling/cmd"

func main() {
	cmd.Execute()
}
