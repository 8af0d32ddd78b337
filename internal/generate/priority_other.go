//go:build !unix

package generate

func lowerPriority() {}
