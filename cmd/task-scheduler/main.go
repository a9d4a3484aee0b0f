package main

import "task-scheduler-service/internal/cli"

func main() {
	cli.Execute()
}
