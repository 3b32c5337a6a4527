/*
	Copyright 2025 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/trackdata-manager-go/cmd"

func main() {
	cmd.Execute()
}
