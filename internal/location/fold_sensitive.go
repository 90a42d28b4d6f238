//go:build !windows && !darwin

package location

func foldCase(path string) string {
	return path
}
