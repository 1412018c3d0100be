package gdbm

// Version is the on-disk format / engine version string.
const Version = "gdbm-go 1.0"
