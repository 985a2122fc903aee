//go:build heapdebug

package kernel

// debugBuild enables poisoning of freed memory by default.
const debugBuild = true
