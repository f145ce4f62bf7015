package common

import "os/user"

// Exit codes in the sysexits tradition, shared by all binaries.
const (
	EX_OK      = 0
	EX_USAGE   = 64
	EX_DATAERR = 65
)

func IsRunningAsRoot() bool {
	usr, _ := user.Current()
	return usr.Username == "root"
}
