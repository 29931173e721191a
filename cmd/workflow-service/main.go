// Command workflow-service runs manufacturing analytics workflows,
// either once from the command line or as a long-running HTTP service.
package main

func main() {
	Execute()
}
