package ffldb

import (
	"github.com/solisnet/solisd/logger"
)

var log = logger.RegisterSubSystem("SXDB")
