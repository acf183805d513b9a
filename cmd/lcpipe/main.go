// Command lcpipe retiles LiDAR point clouds onto a regular grid, fans
// retiling jobs out to local or remote workers and moves results to and from
// WebDAV storage.
package main

func main() {
	Execute()
}
