//go:build !unix

package fsx

// CheckWritable is a no-op where access(2) is unavailable.
func CheckWritable(string) error {
	return nil
}
