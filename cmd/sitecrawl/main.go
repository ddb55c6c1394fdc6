// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a website breadth-first, following links up to a depth
// limit without leaving the root's domain, and reports every page it
// visited and every request that failed.
//
// Usage:
//
//	sitecrawl crawl <url> [-d depth]
//	sitecrawl history [root]
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
