// Command ufs exports a directory of the local filesystem as a 9P2000
// service, in the spirit of Plan 9's ufs(4) and go9p's ufs example.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/keaganluttrell/ninep/p9"
	"github.com/keaganluttrell/ninep/server"
	"github.com/keaganluttrell/ninep/transport"
)

var (
	addr = flag.String("addr", "tcp!127.0.0.1!5640", "address to announce, proto!addr[!port]")
	root = flag.String("root", ".", "directory to export")
)

// ufsAux is the per-fid state: the absolute host path it names, and
// (once opened) either an *os.File or a cached directory listing.
type ufsAux struct {
	path string
	file *os.File
	dir  []os.FileInfo
}

// ufsTree maps host paths to stable qid paths, the way a real
// filesystem's inode numbers would, since os.FileInfo alone doesn't
// give us one consistent across a session.
type ufsTree struct {
	mu   sync.Mutex
	next uint64
	ids  map[string]uint64
}

func newUfsTree() *ufsTree {
	return &ufsTree{next: 1, ids: make(map[string]uint64)}
}

func (t *ufsTree) qidPath(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[path]; ok {
		return id
	}
	id := t.next
	t.next++
	t.ids[path] = id
	return id
}

func (t *ufsTree) qid(path string, info os.FileInfo) p9.Qid {
	q := p9.Qid{Path: t.qidPath(path)}
	if info.IsDir() {
		q.Type = p9.QTDIR
	} else {
		q.Type = p9.QTFILE
	}
	return q
}

func dirMode(info os.FileInfo) uint32 {
	m := uint32(info.Mode().Perm())
	if info.IsDir() {
		m |= p9.DMDIR
	}
	return m
}

func statOf(tree *ufsTree, path string, info os.FileInfo) p9.Stat {
	return p9.Stat{
		Qid:    tree.qid(path, info),
		Mode:   dirMode(info),
		Mtime:  uint32(info.ModTime().Unix()),
		Atime:  uint32(info.ModTime().Unix()),
		Length: uint64(info.Size()),
		Name:   info.Name(),
		Uid:    "glenda",
		Gid:    "glenda",
		Muid:   "glenda",
	}
}

func aux(f *server.Fid) *ufsAux { return f.Aux.(*ufsAux) }

func main() {
	flag.Parse()

	rootAbs, err := filepath.Abs(*root)
	if err != nil {
		log.Fatalf("ufs: %v", err)
	}

	tree := newUfsTree()
	h := buildHandlers(rootAbs, tree)

	ln, err := transport.Announce(*addr)
	if err != nil {
		log.Fatalf("ufs: announce: %v", err)
	}
	log.Printf("ufs: exporting %s on %s", rootAbs, *addr)

	srv := server.NewServer(h)
	srv.Listen(ln)
	if err := srv.Serve(context.Background()); err != nil {
		log.Printf("ufs: serve: %v", err)
	}
}

func buildHandlers(rootAbs string, tree *ufsTree) *server.Handlers {
	return &server.Handlers{
		Attach: func(r *server.Req9) {
			info, err := os.Lstat(rootAbs)
			if err != nil {
				r.Respond(err.Error())
				return
			}
			r.Fid.Aux = &ufsAux{path: rootAbs}
			r.Fid.Qid = tree.qid(rootAbs, info)
			r.Ofcall.Qid = r.Fid.Qid
			r.Respond("")
		},
		Walk: func(r *server.Req9) {
			cur := aux(r.Fid).path
			qids := make([]p9.Qid, 0, len(r.Ifcall.Wname))
			for _, name := range r.Ifcall.Wname {
				next := cur
				switch name {
				case ".":
				case "..":
					next = filepath.Dir(cur)
				default:
					next = filepath.Join(cur, name)
				}
				if !strings.HasPrefix(next, rootAbs) {
					break
				}
				info, err := os.Lstat(next)
				if err != nil {
					break
				}
				qids = append(qids, tree.qid(next, info))
				cur = next
			}
			r.Ofcall.Wqid = qids
			if len(qids) == len(r.Ifcall.Wname) {
				r.NewFid.Aux = &ufsAux{path: cur}
			}
			r.Respond("")
		},
		Open: func(r *server.Req9) {
			a := aux(r.Fid)
			info, err := os.Lstat(a.path)
			if err != nil {
				r.Respond(err.Error())
				return
			}
			if info.IsDir() {
				entries, err := os.ReadDir(a.path)
				if err != nil {
					r.Respond(err.Error())
					return
				}
				infos := make([]os.FileInfo, 0, len(entries))
				for _, e := range entries {
					if fi, err := e.Info(); err == nil {
						infos = append(infos, fi)
					}
				}
				a.dir = infos
			} else {
				f, err := os.OpenFile(a.path, omode2flags(r.Ifcall.Mode), 0)
				if err != nil {
					r.Respond(err.Error())
					return
				}
				a.file = f
			}
			r.Ofcall.Qid = r.Fid.Qid
			r.Ofcall.Iounit = 0
			r.Respond("")
		},
		Create: func(r *server.Req9) {
			a := aux(r.Fid)
			full := filepath.Join(a.path, r.Ifcall.Name)
			var qid p9.Qid
			if r.Ifcall.Perm&p9.DMDIR != 0 {
				if err := os.Mkdir(full, os.FileMode(r.Ifcall.Perm&0777)); err != nil {
					r.Respond(err.Error())
					return
				}
				qid = p9.Qid{Type: p9.QTDIR, Path: tree.qidPath(full)}
			} else {
				f, err := os.OpenFile(full, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(r.Ifcall.Perm&0777))
				if err != nil {
					r.Respond(err.Error())
					return
				}
				a.file = f
				qid = p9.Qid{Type: p9.QTFILE, Path: tree.qidPath(full)}
			}
			a.path = full
			r.Fid.Qid = qid
			r.Ofcall.Qid = qid
			r.Ofcall.Iounit = 0
			r.Respond("")
		},
		Read: func(r *server.Req9) {
			a := aux(r.Fid)
			if r.Fid.Qid.IsDir() {
				readDirStats(r, a, tree)
				return
			}
			buf := make([]byte, r.Ifcall.Count)
			n, err := a.file.ReadAt(buf, int64(r.Ifcall.Offset))
			if err != nil && err != io.EOF {
				r.Respond(err.Error())
				return
			}
			r.Ofcall.Data = buf[:n]
			r.Respond("")
		},
		Write: func(r *server.Req9) {
			a := aux(r.Fid)
			n, err := a.file.WriteAt(r.Ifcall.Data, int64(r.Ifcall.Offset))
			if err != nil {
				r.Respond(err.Error())
				return
			}
			r.Ofcall.Count = uint32(n)
			r.Respond("")
		},
		Stat: func(r *server.Req9) {
			a := aux(r.Fid)
			info, err := os.Lstat(a.path)
			if err != nil {
				r.Respond(err.Error())
				return
			}
			r.Ofcall.Stat = statOf(tree, a.path, info)
			r.Respond("")
		},
		Clunk: func(r *server.Req9) {
			if a, ok := r.Fid.Aux.(*ufsAux); ok && a.file != nil {
				a.file.Close()
			}
			r.Respond("")
		},
		Remove: func(r *server.Req9) {
			a := aux(r.Fid)
			err := os.Remove(a.path)
			if a.file != nil {
				a.file.Close()
			}
			if err != nil {
				r.Respond(err.Error())
				return
			}
			r.Respond("")
		},
		FreeFid: func(f *server.Fid) {
			if a, ok := f.Aux.(*ufsAux); ok && a.file != nil {
				a.file.Close()
			}
		},
	}
}

func readDirStats(r *server.Req9, a *ufsAux, tree *ufsTree) {
	offset := r.Ifcall.Offset
	var n uint64
	var buf []byte
	for _, info := range a.dir {
		st := statOf(tree, filepath.Join(a.path, info.Name()), info)
		size := uint64(st.WireSize())
		if n+size <= offset {
			n += size
			continue
		}
		if uint32(len(buf)+int(size)) > r.Ifcall.Count {
			break
		}
		buf = append(buf, encodeStat(st)...)
		n += size
	}
	r.Ofcall.Data = buf
	r.Respond("")
}

func encodeStat(st p9.Stat) []byte {
	fc := &p9.Fcall{Type: p9.Rstat, Stat: st}
	msg := p9.Fcall2Msg(fc)
	// Strip the outer 4-byte size + 1-byte type + 2-byte tag the
	// Fcall framing adds; only the stat's own record is wanted here.
	return msg[7:]
}

func omode2flags(mode uint8) int {
	switch mode & 3 {
	case p9.OWRITE:
		return os.O_WRONLY
	case p9.ORDWR:
		return os.O_RDWR
	default:
		return os.O_RDONLY
	}
}
