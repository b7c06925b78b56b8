// Command physbot runs the Physum Discord bot.
package main

func main() {
	Execute()
}
