//go:build !heapdebug

package kernel

const debugBuild = false
