package server

// Error strings matching the wire text libixp's request dispatcher
// sends back verbatim; clients match on these, not an error code, so
// the text is part of the protocol.
const (
	errDupTag      = "tag in use"
	errDupFid      = "fid in use"
	errNoFunc      = "function not implemented"
	errOpen        = "fid is already open"
	errNofile      = "file does not exist"
	errNoRead      = "file not open for reading"
	errNoFid       = "fid does not exist"
	errNoTag       = "tag does not exist"
	errNotDir      = "not a directory"
	errInterrupted = "interrupted"
	errIsDir       = "cannot perform operation on a directory"
	errNoWrite     = "write on fid not opened for writing"
	errCannotWalk  = "cannot walk from an open fid"
	errWstatType   = "wstat of type"
	errWstatDev    = "wstat of dev"
	errWstatQid    = "wstat of qid"
	errWstatMuid   = "wstat of muid"
	errWstatDMDir  = "wstat on DMDIR bit"
)
