package ff

import (
	"github.com/solisnet/solisd/logger"
)

var log = logger.RegisterSubSystem("SXDB")
