// Command kabum-scraper collects product listings from one Kabum category.
package main

func main() {
	Execute()
}
