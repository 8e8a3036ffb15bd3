package guardlock

import (
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("guardlock")

func defaultLeakHandler(err *UnreleasedGuardError) {
	logger.Criticalf("%v", err)
	panic(err)
}
