// Command gazetteer edits local land and property gazetteer records.
package main

import "github.com/mesh-intelligence/gazetteer/internal/cli"

func main() {
	cli.Execute()
}
