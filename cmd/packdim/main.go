package main

import "github.com/MeKo-Tech/packdim/cmd/packdim/cmd"

func main() {
	cmd.Execute()
}
