// Package mainboilerplate contains shared boilerplate for tabledb programs.
// The idea is to provide a selection of narrowly scoped methods so callers
// do not have to buy-in to an all-or-nothing approach.
package mainboilerplate

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Version and BuildDate are populated at build time via -ldflags.
var (
	Version   = "development"
	BuildDate = "unknown"
)

// Must logs and exits if |err| is non-nil. |msg| is the log message, and
// |extra| are alternating key/value pairs of additional log fields.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[fmt.Sprintf("%v", extra[i])] = extra[i+1]
	}
	log.WithFields(f).Fatal(msg)
}
