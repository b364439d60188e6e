package ldb

import (
	"github.com/solisnet/solisd/logger"
)

var log = logger.RegisterSubSystem("SXDB")
