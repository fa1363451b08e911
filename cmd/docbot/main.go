// Package main provides the docbot command.
//
// Usage:
//
//	docbot serve
//	docbot analyze <url|path> [--content-type image/png]
//	docbot search <query>
//	docbot ask <text>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
