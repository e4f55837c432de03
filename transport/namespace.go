package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// NamespaceDir returns the directory 9P Unix-domain sockets are
// conventionally placed in: $NAMESPACE if set, otherwise
// /tmp/ns.$USER.$DISPLAY with any trailing ".0" screen suffix dropped
// from $DISPLAY, the way Plan 9 ports derive it. The directory is
// created mode 0700 if absent; a directory owned by someone else or
// writable by group/other is refused.
func NamespaceDir() (string, error) {
	ns := os.Getenv("NAMESPACE")
	if ns == "" {
		user := os.Getenv("USER")
		if user == "" {
			return "", fmt.Errorf("transport: NAMESPACE unset and USER unset")
		}
		display := os.Getenv("DISPLAY")
		display = strings.TrimSuffix(display, ".0")
		ns = fmt.Sprintf("/tmp/ns.%s.%s", user, display)
	}

	if err := os.MkdirAll(ns, 0700); err != nil {
		return "", fmt.Errorf("transport: namespace %s: %w", ns, err)
	}
	if err := checkNamespaceDir(ns); err != nil {
		return "", err
	}
	return ns, nil
}

// checkNamespaceDir refuses a namespace directory another user could
// tamper with: wrong owner, or group/other write permission.
func checkNamespaceDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("transport: namespace %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("transport: namespace %s is not a directory", dir)
	}
	if fi.Mode().Perm()&0022 != 0 {
		return fmt.Errorf("transport: namespace %s is group or other writable", dir)
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && int(st.Uid) != os.Getuid() {
		return fmt.Errorf("transport: namespace %s is owned by uid %d, not us", dir, st.Uid)
	}
	return nil
}

// NamespacePath joins a socket name onto the resolved namespace
// directory, for addresses like "unix!$NAMESPACE/service".
func NamespacePath(name string) (string, error) {
	dir, err := NamespaceDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
