package p9

// Qid is a server-assigned file identity: a type (directory, append,
// exclusive, auth, temporary...), a version that changes whenever the
// file's contents change, and a path that is unique among all files
// ever served by one server.
type Qid struct {
	Type    uint8
	Version uint32
	Path    uint64
}

// Eq reports whether two qids name the same file version.
func (q Qid) Eq(o Qid) bool {
	return q.Type == o.Type && q.Version == o.Version && q.Path == o.Path
}

// IsDir reports whether the qid names a directory.
func (q Qid) IsDir() bool {
	return q.Type&QTDIR != 0
}
