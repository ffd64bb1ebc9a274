// Package checksum computes and compares the content digests the release feed publishes.
package checksum
