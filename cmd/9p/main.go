// Command 9p is a client for 9P2000 file services: it mounts an
// address and runs a single ls/read/write/create/remove operation
// against it, in the spirit of Plan 9's 9p(1).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/keaganluttrell/ninep/client"
	"github.com/keaganluttrell/ninep/p9"
)

var (
	addr  = flag.String("a", "tcp!127.0.0.1!564", "address to mount, proto!addr[!port]")
	user  = flag.String("u", "glenda", "attach user name")
	aname = flag.String("n", "", "attach tree name")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	c, err := client.Mount(ctx, client.NewNetworkDialer(), *addr, 0)
	if err != nil {
		log.Fatalf("9p: mount: %v", err)
	}
	defer c.Close()

	root, err := c.Attach(ctx, *user, *aname)
	if err != nil {
		log.Fatalf("9p: attach: %v", err)
	}

	cmd, path := args[0], args[1]
	if err := run(ctx, root, cmd, path, args[2:]); err != nil {
		log.Fatalf("9p: %s: %v", cmd, err)
	}
}

func run(ctx context.Context, root *client.Fid, cmd, path string, rest []string) error {
	switch cmd {
	case "ls":
		return cmdLs(ctx, root, path)
	case "read":
		return cmdRead(ctx, root, path)
	case "write":
		return cmdWrite(ctx, root, path)
	case "append":
		return cmdAppend(ctx, root, path)
	case "create":
		return cmdCreate(ctx, root, path, rest)
	case "remove":
		return cmdRemove(ctx, root, path)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func walkPath(ctx context.Context, root *client.Fid, path string) (*client.Fid, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return root.Walk(ctx)
	}
	return root.Walk(ctx, strings.Split(path, "/")...)
}

func cmdLs(ctx context.Context, root *client.Fid, path string) error {
	f, err := walkPath(ctx, root, path)
	if err != nil {
		return err
	}
	if err := f.Open(ctx, p9.OREAD); err != nil {
		return err
	}
	if !f.Qid.IsDir() {
		st, err := f.Stat(ctx)
		if err != nil {
			return err
		}
		fmt.Println(st.Name)
		return nil
	}
	entries, err := f.ReadDir(ctx)
	if err != nil {
		return err
	}
	for _, st := range entries {
		fmt.Println(st.Name)
	}
	return nil
}

func cmdRead(ctx context.Context, root *client.Fid, path string) error {
	f, err := walkPath(ctx, root, path)
	if err != nil {
		return err
	}
	if err := f.Open(ctx, p9.OREAD); err != nil {
		return err
	}
	buf := make([]byte, 8192)
	for {
		n, err := f.Read(ctx, buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err != nil {
			return nil
		}
		if n == 0 {
			return nil
		}
	}
}

func cmdWrite(ctx context.Context, root *client.Fid, path string) error {
	f, err := walkPath(ctx, root, path)
	if err != nil {
		return err
	}
	if err := f.Open(ctx, p9.OWRITE); err != nil {
		return err
	}
	buf := make([]byte, 8192)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if _, werr := f.Write(ctx, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}

func cmdAppend(ctx context.Context, root *client.Fid, path string) error {
	f, err := walkPath(ctx, root, path)
	if err != nil {
		return err
	}
	st, err := f.Stat(ctx)
	if err != nil {
		return err
	}
	if err := f.Open(ctx, p9.OWRITE); err != nil {
		return err
	}
	offset := st.Length
	buf := make([]byte, 8192)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			w, werr := f.PwriteAt(ctx, buf[:n], offset)
			if werr != nil {
				return werr
			}
			offset += uint64(w)
		}
		if err != nil {
			return nil
		}
	}
}

func cmdCreate(ctx context.Context, root *client.Fid, path string, rest []string) error {
	dir := strings.Trim(path, "/")
	f, err := walkPath(ctx, root, dir)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("create: missing file name")
	}
	return f.Create(ctx, rest[0], 0644, p9.ORDWR)
}

func cmdRemove(ctx context.Context, root *client.Fid, path string) error {
	f, err := walkPath(ctx, root, path)
	if err != nil {
		return err
	}
	return f.Remove(ctx)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: 9p [-a addr] [-u user] [-n aname] {ls|read|write|append|create|remove} path [name]\n")
	flag.PrintDefaults()
}
