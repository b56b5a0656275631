// The govscout-crawler executable.
package main

import "github.com/JakeFAU/govscout-crawler/cmd"

func main() {
	cmd.Execute()
}
