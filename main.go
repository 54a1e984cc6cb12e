package main

import "github.com/neurothrive/thrive/cmd/thrive"

func main() {
	thrive.Execute()
}
